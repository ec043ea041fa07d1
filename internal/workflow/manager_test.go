package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sunny/internal/config"
	"sunny/internal/logging"
	"sunny/internal/meeting"
	"sunny/internal/notifications"
	"sunny/internal/recording"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/stage"
	"sunny/internal/testsupport"
	"sunny/internal/workflow"
)

type fakeHandle struct {
	done chan struct{}
	once sync.Once
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{done: make(chan struct{})}
}

func (h *fakeHandle) end() {
	h.once.Do(func() { close(h.done) })
}

func (h *fakeHandle) Ended() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *fakeHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeDriver struct {
	mu       sync.Mutex
	joinErrs []error
	joins    int
	handles  []*fakeHandle
}

func (d *fakeDriver) Join(context.Context, meeting.Ref, string) (meeting.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.joins++
	if len(d.joinErrs) > 0 {
		err := d.joinErrs[0]
		d.joinErrs = d.joinErrs[1:]
		return nil, err
	}
	handle := newFakeHandle()
	d.handles = append(d.handles, handle)
	return handle, nil
}

func (d *fakeDriver) Leave(_ context.Context, handle meeting.Handle) error {
	if h, ok := handle.(*fakeHandle); ok {
		h.end()
	}
	return nil
}

func (d *fakeDriver) Available(context.Context) error { return nil }

func (d *fakeDriver) joinCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.joins
}

func (d *fakeDriver) handle(i int) *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.handles) {
		return nil
	}
	return d.handles[i]
}

type fakeCapture struct {
	size int
}

func (c *fakeCapture) Start(_ context.Context, destPath string) (recording.CaptureProc, error) {
	size := c.size
	if size <= 0 {
		size = 1024
	}
	if err := os.WriteFile(destPath, bytes.Repeat([]byte{0x01}, size), 0o644); err != nil {
		return nil, err
	}
	return fakeCaptureProc{}, nil
}

func (c *fakeCapture) Available(context.Context) error { return nil }

type fakeCaptureProc struct{}

func (fakeCaptureProc) Stop(context.Context) error { return nil }

type stubHandler struct {
	name string

	mu      sync.Mutex
	calls   int
	execute func(session *sessions.Session, attempt int) error
}

func newStubHandler(name string) *stubHandler {
	return &stubHandler{name: name}
}

func (s *stubHandler) Prepare(context.Context, *sessions.Session) error { return nil }

func (s *stubHandler) Execute(_ context.Context, session *sessions.Session) error {
	s.mu.Lock()
	s.calls++
	attempt := s.calls
	fn := s.execute
	s.mu.Unlock()
	if fn != nil {
		return fn(session, attempt)
	}
	return nil
}

func (s *stubHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy(s.name) }

func (s *stubHandler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSet struct {
	transcriber *stubHandler
	analyzer    *stubHandler
	summarizer  *stubHandler
	reporter    *stubHandler
	deliverer   *stubHandler
}

func newStubSet() *stubSet {
	return &stubSet{
		transcriber: newStubHandler("transcriber"),
		analyzer:    newStubHandler("analyzer"),
		summarizer:  newStubHandler("summarizer"),
		reporter:    newStubHandler("reporter"),
		deliverer:   newStubHandler("deliverer"),
	}
}

func (s *stubSet) set() workflow.StageSet {
	return workflow.StageSet{
		Transcriber: s.transcriber,
		Analyzer:    s.analyzer,
		Summarizer:  s.summarizer,
		Reporter:    s.reporter,
		Deliverer:   s.deliverer,
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	// Fixed-duration capture with a zero cap returns immediately, keeping
	// live sessions fast in tests.
	cfg.Recording.PreferEndSignal = false
	cfg.Recording.MaxDurationMinutes = 0
	cfg.Recording.MinAudioBytes = 16
	cfg.Workflow.RetryBackoffSeconds = 1
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config, store *sessions.Store, driver meeting.Driver, set workflow.StageSet) *workflow.Manager {
	t.Helper()
	logger := logging.NewNop()
	joiner := meeting.NewJoinerWithDriver(cfg, logger, driver)
	recorder := recording.NewRecorderWithCapture(cfg, logger, &fakeCapture{})
	return workflow.NewManagerWithDependencies(cfg, store, logger,
		notifications.NewService(cfg), joiner, recorder, set,
		workflow.WithSleeper(func(context.Context, time.Duration) {}),
		workflow.WithPollInterval(20*time.Millisecond))
}

func startManager(t *testing.T, mgr *workflow.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(mgr.Stop)
}

func waitForStatus(t *testing.T, store *sessions.Store, id int64, want sessions.Status) *sessions.Session {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			current, err := store.GetByID(context.Background(), id)
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			t.Fatalf("timed out waiting for status %s, session stuck at %s", want, current.Status)
		default:
		}
		session, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if session.Status == want {
			return session
		}
		if sessions.IsTerminal(session.Status) && session.Status != want {
			t.Fatalf("session reached terminal status %s while waiting for %s (error: %s %s)",
				session.Status, want, session.ErrorKind, session.ErrorMessage)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManagerCompletesLiveSession(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	driver := &fakeDriver{}
	stubs := newStubSet()

	mgr := newTestManager(t, cfg, store, driver, stubs.set())
	startManager(t, mgr)

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123456789", sessions.PlatformZoom)
	final := waitForStatus(t, store, session.ID, sessions.StatusCompleted)

	if final.AudioFile == "" {
		t.Fatal("expected audio file to be recorded on session")
	}
	if final.ProgressPercent != 100 {
		t.Fatalf("expected progress 100, got %v", final.ProgressPercent)
	}
	if stubs.deliverer.callCount() != 1 {
		t.Fatalf("expected one delivery, got %d", stubs.deliverer.callCount())
	}

	var sawDelivering bool
	for _, transition := range final.History() {
		if transition.Status == sessions.StatusDelivering {
			sawDelivering = true
		}
	}
	if !sawDelivering {
		t.Fatal("expected delivering in the stage history")
	}
}

func TestManagerSkipsDeliveryWithoutEmail(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	driver := &fakeDriver{}
	stubs := newStubSet()

	mgr := newTestManager(t, cfg, store, driver, stubs.set())
	startManager(t, mgr)

	session, err := store.Create(context.Background(), "https://zoom.us/j/123456789", sessions.PlatformZoom, "", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	final := waitForStatus(t, store, session.ID, sessions.StatusCompleted)

	if stubs.deliverer.callCount() != 0 {
		t.Fatalf("expected no delivery attempts, got %d", stubs.deliverer.callCount())
	}
	for _, transition := range final.History() {
		if transition.Status == sessions.StatusDelivering {
			t.Fatal("delivering must not appear in the history when email is off")
		}
	}
}

func TestManagerProcessesUploadWithoutJoining(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	driver := &fakeDriver{}
	stubs := newStubSet()

	mgr := newTestManager(t, cfg, store, driver, stubs.set())
	startManager(t, mgr)

	audioPath := filepath.Join(cfg.Paths.AudioDir, "upload.wav")
	if err := os.WriteFile(audioPath, bytes.Repeat([]byte{0x01}, 64), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	session, err := store.NewUpload(context.Background(), audioPath, "notes@example.com", true)
	if err != nil {
		t.Fatalf("NewUpload: %v", err)
	}

	waitForStatus(t, store, session.ID, sessions.StatusCompleted)
	if driver.joinCount() != 0 {
		t.Fatalf("upload session must not join a meeting, saw %d joins", driver.joinCount())
	}
}

func TestManagerFailsAfterJoinRetriesExhausted(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.JoinMaxAttempts = 2
	store := testsupport.MustOpenStore(t, cfg)
	driver := &fakeDriver{joinErrs: []error{
		errors.New("bot crashed"),
		errors.New("bot crashed"),
		errors.New("bot crashed"),
	}}
	stubs := newStubSet()

	mgr := newTestManager(t, cfg, store, driver, stubs.set())
	startManager(t, mgr)

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123456789", sessions.PlatformZoom)
	final := waitForStatus(t, store, session.ID, sessions.StatusFailed)

	if driver.joinCount() != 2 {
		t.Fatalf("expected 2 join attempts, got %d", driver.joinCount())
	}
	if final.ErrorKind != string(services.KindJoinTransient) {
		t.Fatalf("unexpected error kind %q", final.ErrorKind)
	}
	if final.ErrorStage != "join" {
		t.Fatalf("unexpected error stage %q", final.ErrorStage)
	}
	if stubs.transcriber.callCount() != 0 {
		t.Fatal("pipeline stages must not run after a join failure")
	}
}

func TestManagerFailsFastOnNonRetryableStageError(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	driver := &fakeDriver{}
	stubs := newStubSet()
	stubs.transcriber.execute = func(*sessions.Session, int) error {
		return services.Wrap(services.KindEmptyAudio, "transcribe", "no speech detected", nil)
	}

	mgr := newTestManager(t, cfg, store, driver, stubs.set())
	startManager(t, mgr)

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123456789", sessions.PlatformZoom)
	final := waitForStatus(t, store, session.ID, sessions.StatusFailed)

	if stubs.transcriber.callCount() != 1 {
		t.Fatalf("non-retryable errors must not be retried, got %d attempts", stubs.transcriber.callCount())
	}
	if final.ErrorKind != string(services.KindEmptyAudio) {
		t.Fatalf("unexpected error kind %q", final.ErrorKind)
	}
	if stubs.analyzer.callCount() != 0 {
		t.Fatal("later stages must not run after a failure")
	}
}

func TestManagerRetriesTransientSummarizeError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.SummarizeMaxAttempts = 3
	store := testsupport.MustOpenStore(t, cfg)
	driver := &fakeDriver{}
	stubs := newStubSet()
	stubs.summarizer.execute = func(_ *sessions.Session, attempt int) error {
		if attempt < 3 {
			return services.Wrap(services.KindProviderTransient, "summarize", "provider overloaded", nil)
		}
		return nil
	}

	mgr := newTestManager(t, cfg, store, driver, stubs.set())
	startManager(t, mgr)

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123456789", sessions.PlatformZoom)
	final := waitForStatus(t, store, session.ID, sessions.StatusCompleted)

	if stubs.summarizer.callCount() != 3 {
		t.Fatalf("expected 3 summarize attempts, got %d", stubs.summarizer.callCount())
	}
	if final.RetryCount != 0 {
		t.Fatalf("retry count must reset after success, got %d", final.RetryCount)
	}
}

func TestManagerCancelsDuringRecording(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.PreferEndSignal = true
	cfg.Recording.EndPollSeconds = 1
	cfg.Recording.MaxDurationMinutes = 10
	store := testsupport.MustOpenStore(t, cfg)
	driver := &fakeDriver{}
	stubs := newStubSet()

	mgr := newTestManager(t, cfg, store, driver, stubs.set())
	startManager(t, mgr)

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123456789", sessions.PlatformZoom)
	waitForStatus(t, store, session.ID, sessions.StatusRecording)

	if err := store.RequestCancel(context.Background(), session.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	final := waitForStatus(t, store, session.ID, sessions.StatusCancelled)

	if final.ErrorKind != "" {
		t.Fatalf("cancelled sessions must not carry an error, got %q", final.ErrorKind)
	}
	if stubs.transcriber.callCount() != 0 {
		t.Fatal("pipeline stages must not run after cancellation")
	}

	// The meeting slot must be free again: a follow-up session completes.
	next := testsupport.NewSession(t, store, "https://zoom.us/j/987654321", sessions.PlatformZoom)
	waitForStatus(t, store, next.ID, sessions.StatusCompleted)
}

func TestManagerCancelWithTrivialRecordingFailsEmpty(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.PreferEndSignal = true
	cfg.Recording.EndPollSeconds = 1
	cfg.Recording.MaxDurationMinutes = 10
	store := testsupport.MustOpenStore(t, cfg)
	driver := &fakeDriver{}
	stubs := newStubSet()

	logger := logging.NewNop()
	joiner := meeting.NewJoinerWithDriver(cfg, logger, driver)
	recorder := recording.NewRecorderWithCapture(cfg, logger, &fakeCapture{size: 4})
	mgr := workflow.NewManagerWithDependencies(cfg, store, logger,
		notifications.NewService(cfg), joiner, recorder, stubs.set(),
		workflow.WithSleeper(func(context.Context, time.Duration) {}),
		workflow.WithPollInterval(20*time.Millisecond))
	startManager(t, mgr)

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123456789", sessions.PlatformZoom)
	waitForStatus(t, store, session.ID, sessions.StatusRecording)

	if err := store.RequestCancel(context.Background(), session.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	final := waitForStatus(t, store, session.ID, sessions.StatusFailed)

	if final.ErrorKind != string(services.KindEmptyRecording) {
		t.Fatalf("expected empty_recording, got %q", final.ErrorKind)
	}
	if final.AudioFile != "" {
		t.Fatal("trivial recording must not be kept on the session")
	}
	if stubs.transcriber.callCount() != 0 {
		t.Fatal("pipeline stages must not run after an empty recording")
	}
}

func TestManagerCancelsQueuedSession(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	driver := &fakeDriver{}
	stubs := newStubSet()

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123456789", sessions.PlatformZoom)
	if err := store.RequestCancel(context.Background(), session.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	mgr := newTestManager(t, cfg, store, driver, stubs.set())
	startManager(t, mgr)

	waitForStatus(t, store, session.ID, sessions.StatusCancelled)
	if driver.joinCount() != 0 {
		t.Fatalf("cancelled-before-start sessions must never join, saw %d joins", driver.joinCount())
	}
}

func TestManagerHonorsMeetingSlotCap(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.MaxActiveMeetings = 1
	cfg.Recording.PreferEndSignal = true
	cfg.Recording.EndPollSeconds = 1
	cfg.Recording.MaxDurationMinutes = 10
	store := testsupport.MustOpenStore(t, cfg)
	driver := &fakeDriver{}
	stubs := newStubSet()

	mgr := newTestManager(t, cfg, store, driver, stubs.set())
	startManager(t, mgr)

	first := testsupport.NewSession(t, store, "https://zoom.us/j/111111111", sessions.PlatformZoom)
	waitForStatus(t, store, first.ID, sessions.StatusRecording)
	second := testsupport.NewSession(t, store, "https://zoom.us/j/222222222", sessions.PlatformZoom)

	// With the only slot held by the recording session, the second session
	// must stay queued.
	time.Sleep(300 * time.Millisecond)
	queued, err := store.GetByID(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if queued.Status != sessions.StatusCreated {
		t.Fatalf("expected second session to wait at created, got %s", queued.Status)
	}

	// Ending the first meeting frees the slot and the second session runs.
	driver.handle(0).end()
	waitForStatus(t, store, first.ID, sessions.StatusCompleted)
	waitForStatus(t, store, second.ID, sessions.StatusCompleted)
}

func TestManagerStatusReportsStageHealth(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	driver := &fakeDriver{}
	stubs := newStubSet()

	mgr := newTestManager(t, cfg, store, driver, stubs.set())
	summary := mgr.Status(context.Background())

	if summary.Running {
		t.Fatal("manager must report not running before Start")
	}
	if summary.MeetingSlots != cfg.Workflow.MaxActiveMeetings {
		t.Fatalf("expected %d meeting slots, got %d", cfg.Workflow.MaxActiveMeetings, summary.MeetingSlots)
	}
	for _, name := range []string{"joiner", "recorder", "transcribe", "analyze", "summarize", "report", "deliver"} {
		health, ok := summary.StageHealth[name]
		if !ok {
			t.Fatalf("missing health entry for %s", name)
		}
		if !health.Ready {
			t.Fatalf("expected %s to be healthy: %s", name, health.Detail)
		}
	}
}

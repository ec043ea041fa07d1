package meeting_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sunny/internal/logging"
	"sunny/internal/meeting"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/stage"
	"sunny/internal/testsupport"
)

func TestParseURL(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		platform sessions.Platform
		id       string
		passcode string
		wantErr  bool
	}{
		{"zoom basic", "https://zoom.us/j/123456789", sessions.PlatformZoom, "123456789", "", false},
		{"zoom subdomain with passcode", "https://us02web.zoom.us/j/987654321?pwd=abcDEF123", sessions.PlatformZoom, "987654321", "abcDEF123", false},
		{"google meet", "https://meet.google.com/abc-defg-hij", sessions.PlatformGoogleMeet, "abc-defg-hij", "", false},
		{"meet without scheme", "meet.google.com/xyz-qrst-uvw", sessions.PlatformGoogleMeet, "xyz-qrst-uvw", "", false},
		{"unknown host", "https://example.com/meeting/42", "", "", "", true},
		{"zoom non-numeric id", "https://zoom.us/j/not-a-meeting", "", "", "", true},
		{"meet wrong code shape", "https://meet.google.com/abcdefghij", "", "", "", true},
		{"empty", "   ", "", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := meeting.ParseURL(tc.url)
			if tc.wantErr {
				if !services.IsKind(err, services.KindInvalidURL) {
					t.Fatalf("expected invalid_url, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURL: %v", err)
			}
			if ref.Platform != tc.platform || ref.MeetingID != tc.id || ref.Passcode != tc.passcode {
				t.Fatalf("unexpected ref %+v", ref)
			}
		})
	}
}

type fakeHandle struct {
	ended chan struct{}
}

func newFakeHandle() *fakeHandle { return &fakeHandle{ended: make(chan struct{})} }

func (h *fakeHandle) Ended() bool {
	select {
	case <-h.ended:
		return true
	default:
		return false
	}
}

func (h *fakeHandle) Wait(ctx context.Context) error {
	select {
	case <-h.ended:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeDriver struct {
	joinErr   error
	blockJoin bool
	handle    *fakeHandle
	leftCount int
}

func (d *fakeDriver) Join(ctx context.Context, ref meeting.Ref, botName string) (meeting.Handle, error) {
	if d.blockJoin {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d.joinErr != nil {
		return nil, d.joinErr
	}
	if d.handle == nil {
		d.handle = newFakeHandle()
	}
	return d.handle, nil
}

func (d *fakeDriver) Leave(ctx context.Context, handle meeting.Handle) error {
	d.leftCount++
	if h, ok := handle.(*fakeHandle); ok && !h.Ended() {
		close(h.ended)
	}
	return nil
}

func (d *fakeDriver) Available(context.Context) error { return nil }

func newJoinSession(url string, platform sessions.Platform) *sessions.Session {
	return &sessions.Session{ID: 1, MeetingURL: url, Platform: platform, Status: sessions.StatusJoining}
}

func TestJoinerAdmitsBot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	driver := &fakeDriver{}
	joiner := meeting.NewJoinerWithDriver(cfg, logging.NewNop(), driver)

	handle, err := joiner.Join(context.Background(), newJoinSession("https://zoom.us/j/123456789", sessions.PlatformZoom))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if handle.Ended() {
		t.Fatal("fresh handle should not report ended")
	}
	if err := joiner.Leave(context.Background(), handle); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if driver.leftCount != 1 {
		t.Fatalf("expected one leave, got %d", driver.leftCount)
	}
}

func TestJoinerClassifiesTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Meeting.JoinTimeoutSeconds = 1
	driver := &fakeDriver{blockJoin: true}
	joiner := meeting.NewJoinerWithDriver(cfg, logging.NewNop(), driver)

	start := time.Now()
	_, err := joiner.Join(context.Background(), newJoinSession("https://zoom.us/j/123456789", sessions.PlatformZoom))
	if !services.IsKind(err, services.KindJoinTimeout) {
		t.Fatalf("expected join_timeout, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("join timeout should be retryable")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("join did not honor the deadline")
	}
}

func TestJoinerClassifiesAuthAndEnded(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	joiner := meeting.NewJoinerWithDriver(cfg, logging.NewNop(), &fakeDriver{joinErr: meeting.ErrAuthRequired})
	_, err := joiner.Join(context.Background(), newJoinSession("https://zoom.us/j/123456789", sessions.PlatformZoom))
	if !services.IsKind(err, services.KindAuthRequired) {
		t.Fatalf("expected auth_required, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("auth failures are not retryable")
	}

	joiner = meeting.NewJoinerWithDriver(cfg, logging.NewNop(), &fakeDriver{joinErr: meeting.ErrMeetingEnded})
	_, err = joiner.Join(context.Background(), newJoinSession("https://zoom.us/j/123456789", sessions.PlatformZoom))
	if !services.IsKind(err, services.KindMeetingEnded) {
		t.Fatalf("expected meeting_ended, got %v", err)
	}
}

func TestJoinerClassifiesUnknownFailureAsJoinTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	joiner := meeting.NewJoinerWithDriver(cfg, logging.NewNop(), &fakeDriver{joinErr: errors.New("bot crashed")})

	_, err := joiner.Join(context.Background(), newJoinSession("https://zoom.us/j/123456789", sessions.PlatformZoom))
	if !services.IsKind(err, services.KindJoinTransient) {
		t.Fatalf("expected join_transient, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("unclassified join failures should be retried")
	}
}

func TestJoinerRejectsPlatformMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	joiner := meeting.NewJoinerWithDriver(cfg, logging.NewNop(), &fakeDriver{})

	_, err := joiner.Join(context.Background(), newJoinSession("https://zoom.us/j/123456789", sessions.PlatformGoogleMeet))
	if !services.IsKind(err, services.KindInvalidURL) {
		t.Fatalf("expected invalid_url, got %v", err)
	}
}

func TestJoinerCancellationIsNotClassified(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	driver := &fakeDriver{blockJoin: true}
	joiner := meeting.NewJoinerWithDriver(cfg, logging.NewNop(), driver)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := joiner.Join(ctx, newJoinSession("https://zoom.us/j/123456789", sessions.PlatformZoom))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestJoinerHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	joiner := meeting.NewJoinerWithDriver(cfg, logging.NewNop(), &fakeDriver{})
	var health stage.Health = joiner.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected healthy joiner, got %+v", health)
	}
}

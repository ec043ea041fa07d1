package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"sunny/internal/config"
	"sunny/internal/ingest"
	"sunny/internal/logging"
	"sunny/internal/meeting"
	"sunny/internal/notifications"
	"sunny/internal/sessions"
	"sunny/internal/workflow"

	"log/slog"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *sessions.Store
	workflow *workflow.Manager
	watcher  *ingest.Watcher
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	cancel    context.CancelFunc
	watcherWG sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Workflow      workflow.StatusSummary
	SessionDBPath string
	LockFilePath  string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *sessions.Store, logger *slog.Logger, manager *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || manager == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "sunnyd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: manager,
		watcher:  ingest.NewWatcher(cfg, store, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	return d, nil
}

// Start acquires the daemon lock, fails over sessions abandoned by a previous
// run, and launches the workflow manager, ingest watcher, and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sunny daemon instance is already running")
	}

	swept, err := d.store.FailAbandonedProcessing(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("sweep abandoned sessions: %w", err)
	}
	if swept > 0 {
		d.logger.Warn("failed sessions abandoned by previous run", logging.Int64("count", swept))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	if d.watcher != nil {
		d.watcherWG.Add(1)
		go func() {
			defer d.watcherWG.Done()
			if err := d.watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("ingest watcher stopped", logging.Error(err))
			}
		}()
	}

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.Stop()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("sunny daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("pid", os.Getpid()))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.watcherWG.Wait()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	if d.running.Swap(false) {
		d.logger.Info("sunny daemon stopped")
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// CreateSession validates and enqueues a new meeting session.
func (d *Daemon) CreateSession(ctx context.Context, meetingURL, recipient string, sendEmail bool) (*sessions.Session, error) {
	ref, err := meeting.ParseURL(meetingURL)
	if err != nil {
		return nil, err
	}
	recipient = strings.TrimSpace(recipient)
	if sendEmail {
		if recipient == "" {
			return nil, errors.New("recipient email is required when delivery is requested")
		}
		if _, err := mail.ParseAddress(recipient); err != nil {
			return nil, fmt.Errorf("invalid recipient email %q: %w", recipient, err)
		}
	}

	session, err := d.store.Create(ctx, ref.URL, ref.Platform, recipient, sendEmail)
	if err != nil {
		return nil, fmt.Errorf("enqueue session: %w", err)
	}
	d.logger.Info("session queued",
		logging.Int64(logging.FieldSessionID, session.ID),
		logging.String("platform", string(ref.Platform)))
	return session, nil
}

// CancelSession flags a session for cancellation. The workflow observes the
// flag between stages and through the per-session context during recording.
// Cancelling an already-cancelled session is a no-op.
func (d *Daemon) CancelSession(ctx context.Context, id int64) error {
	session, err := d.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.Status == sessions.StatusCancelled {
		return nil
	}
	if sessions.IsTerminal(session.Status) {
		return fmt.Errorf("session %d already %s", id, session.Status)
	}
	return d.store.RequestCancel(ctx, id)
}

// TestNotification sends a probe through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// APIAddr returns the bound API listen address, empty until Start.
func (d *Daemon) APIAddr() string {
	return d.api.Addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Workflow:      d.workflow.Status(ctx),
		SessionDBPath: d.store.Path(),
		LockFilePath:  d.lockPath,
	}
}

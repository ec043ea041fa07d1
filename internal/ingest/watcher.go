package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"sunny/internal/config"
	"sunny/internal/logging"
	"sunny/internal/sessions"
)

var audioExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".m4a":  {},
	".ogg":  {},
	".opus": {},
	".flac": {},
}

// Watcher monitors the ingest directory and turns dropped audio files into
// upload sessions that start the pipeline at transcribing.
type Watcher struct {
	cfg    *config.Config
	store  *sessions.Store
	logger *slog.Logger

	// settle is how long a file must keep a stable size before it is
	// considered fully written.
	settle time.Duration
}

// NewWatcher constructs an ingest watcher. It returns nil when no ingest
// directory is configured.
func NewWatcher(cfg *config.Config, store *sessions.Store, logger *slog.Logger) *Watcher {
	if strings.TrimSpace(cfg.Paths.IngestDir) == "" {
		return nil
	}
	if logger != nil {
		logger = logger.With(logging.String(logging.FieldComponent, "ingest"))
	}
	return &Watcher{cfg: cfg, store: store, logger: logger, settle: time.Second}
}

// Run watches the ingest directory until the context is cancelled. Files
// already present at startup are ingested before event processing begins.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.logger
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.MkdirAll(w.cfg.Paths.IngestDir, 0o755); err != nil {
		return fmt.Errorf("create ingest directory: %w", err)
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start ingest watcher: %w", err)
	}
	defer notifier.Close()
	if err := notifier.Add(w.cfg.Paths.IngestDir); err != nil {
		return fmt.Errorf("watch ingest directory: %w", err)
	}

	logger.Info("watching ingest directory", logging.String("dir", w.cfg.Paths.IngestDir))
	w.sweepExisting(ctx, logger)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-notifier.Events:
			if !ok {
				return errors.New("ingest watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isAudioFile(event.Name) {
				continue
			}
			if err := w.ingest(ctx, logger, event.Name); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error("failed to ingest recording",
					logging.String("file", event.Name),
					logging.Error(err))
			}
		case err, ok := <-notifier.Errors:
			if !ok {
				return errors.New("ingest watcher errors channel closed")
			}
			logger.Warn("ingest watcher error", logging.Error(err))
		}
	}
}

// sweepExisting ingests files that were dropped while the daemon was down.
func (w *Watcher) sweepExisting(ctx context.Context, logger *slog.Logger) {
	entries, err := os.ReadDir(w.cfg.Paths.IngestDir)
	if err != nil {
		logger.Warn("failed to list ingest directory", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isAudioFile(entry.Name()) {
			continue
		}
		path := filepath.Join(w.cfg.Paths.IngestDir, entry.Name())
		if err := w.ingest(ctx, logger, path); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to ingest existing recording",
				logging.String("file", path),
				logging.Error(err))
		}
	}
}

// ingest waits for the file to finish writing, moves it into the audio
// directory, and creates the upload session.
func (w *Watcher) ingest(ctx context.Context, logger *slog.Logger, path string) error {
	if err := w.waitUntilStable(ctx, path); err != nil {
		return err
	}

	dest := filepath.Join(w.cfg.Paths.AudioDir,
		fmt.Sprintf("upload_%d%s", time.Now().UnixNano(), filepath.Ext(path)))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("move ingested recording: %w", err)
	}

	session, err := w.store.NewUpload(ctx, dest, "", false)
	if err != nil {
		return fmt.Errorf("create upload session: %w", err)
	}
	logger.Info("ingested recording",
		logging.Int64(logging.FieldSessionID, session.ID),
		logging.String("audio_file", dest))
	return nil
}

// waitUntilStable polls the file size until two consecutive reads agree,
// guarding against ingesting a file mid-copy.
func (w *Watcher) waitUntilStable(ctx context.Context, path string) error {
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat ingested file: %w", err)
		}
		if info.Size() == lastSize && info.Size() > 0 {
			return nil
		}
		lastSize = info.Size()

		timer := time.NewTimer(w.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func isAudioFile(path string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

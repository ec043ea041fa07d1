package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sunny/internal/logging"
	"sunny/internal/sessions"
	"sunny/internal/testsupport"
)

func waitForUploadSession(t *testing.T, store *sessions.Store) *sessions.Session {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for upload session")
		default:
		}
		listed, err := store.List(context.Background(), sessions.StatusTranscribing)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(listed) > 0 {
			return listed[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcherIngestsDroppedAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	watcher := NewWatcher(cfg, store, logging.NewNop())
	if watcher == nil {
		t.Fatal("expected watcher for configured ingest dir")
	}
	watcher.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watcher.Run(ctx)
	}()
	t.Cleanup(func() { cancel(); <-done })

	// Give the watcher a moment to register before dropping the file.
	time.Sleep(100 * time.Millisecond)
	dropped := filepath.Join(cfg.Paths.IngestDir, "standup.wav")
	if err := os.WriteFile(dropped, []byte("RIFF-audio-bytes"), 0o644); err != nil {
		t.Fatalf("write dropped file: %v", err)
	}

	session := waitForUploadSession(t, store)
	if session.Platform != sessions.PlatformUpload {
		t.Fatalf("expected upload platform, got %s", session.Platform)
	}
	if !strings.HasPrefix(session.AudioFile, cfg.Paths.AudioDir) {
		t.Fatalf("expected audio moved into audio dir, got %s", session.AudioFile)
	}
	if _, err := os.Stat(session.AudioFile); err != nil {
		t.Fatalf("moved audio missing: %v", err)
	}
	if _, err := os.Stat(dropped); !os.IsNotExist(err) {
		t.Fatal("dropped file should be moved out of the ingest directory")
	}
	if session.SendEmail {
		t.Fatal("ingested sessions must not request email delivery")
	}
}

func TestWatcherSweepsExistingFilesAtStartup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if err := os.MkdirAll(cfg.Paths.IngestDir, 0o755); err != nil {
		t.Fatalf("mkdir ingest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Paths.IngestDir, "retro.mp3"), []byte("ID3-audio"), 0o644); err != nil {
		t.Fatalf("write pre-existing file: %v", err)
	}
	// Non-audio files are ignored.
	if err := os.WriteFile(filepath.Join(cfg.Paths.IngestDir, "notes.txt"), []byte("agenda"), 0o644); err != nil {
		t.Fatalf("write ignored file: %v", err)
	}

	watcher := NewWatcher(cfg, store, logging.NewNop())
	watcher.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watcher.Run(ctx)
	}()
	t.Cleanup(func() { cancel(); <-done })

	session := waitForUploadSession(t, store)
	if filepath.Ext(session.AudioFile) != ".mp3" {
		t.Fatalf("unexpected ingested file %s", session.AudioFile)
	}

	listed, err := store.List(context.Background(), sessions.StatusTranscribing)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected exactly one upload session, got %d", len(listed))
	}
}

func TestNewWatcherDisabledWithoutIngestDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.IngestDir = ""
	if watcher := NewWatcher(cfg, testsupport.MustOpenStore(t, cfg), logging.NewNop()); watcher != nil {
		t.Fatal("expected nil watcher when ingest dir is not configured")
	}
}

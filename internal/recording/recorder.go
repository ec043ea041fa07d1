package recording

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"sunny/internal/config"
	"sunny/internal/logging"
	"sunny/internal/meeting"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/stage"
)

// Recorder captures audio for a joined meeting until the call ends, the
// configured duration cap is reached, or the session is cancelled.
type Recorder struct {
	cfg     *config.Config
	logger  *slog.Logger
	capture Capture
}

// NewRecorder constructs the recorder with the default exec capture.
func NewRecorder(cfg *config.Config, logger *slog.Logger) *Recorder {
	return NewRecorderWithCapture(cfg, logger, NewExecCapture(cfg.Recording.CaptureCommand))
}

// NewRecorderWithCapture allows injecting the capture (used in tests).
func NewRecorderWithCapture(cfg *config.Config, logger *slog.Logger, capture Capture) *Recorder {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "recorder"))
	}
	return &Recorder{cfg: cfg, logger: stageLogger, capture: capture}
}

// Record captures the meeting into the audio directory and stores the file
// path on the session. On cancellation a partial recording above the minimum
// size is kept so downstream stages can still run after a resume; smaller
// fragments are discarded and the recording fails as empty.
func (r *Recorder) Record(ctx context.Context, session *sessions.Session, handle meeting.Handle) error {
	logger := logging.WithContext(ctx, r.logger)

	destPath := filepath.Join(r.cfg.Paths.AudioDir, fmt.Sprintf("session_%d.wav", session.ID))
	proc, err := r.capture.Start(ctx, destPath)
	if err != nil {
		return services.Wrap(services.KindDeviceError, "record", "audio capture failed to start", err)
	}

	maxDuration := time.Duration(r.cfg.Recording.MaxDurationMinutes) * time.Minute
	cancelled := r.waitForEnd(ctx, handle, maxDuration)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := proc.Stop(stopCtx); err != nil {
		logger.Warn("capture stop failed", logging.Error(err))
	}

	info, statErr := os.Stat(destPath)
	tooSmall := statErr != nil || info.Size() < r.cfg.Recording.MinAudioBytes

	if cancelled {
		if tooSmall {
			_ = os.Remove(destPath)
			return services.Wrap(services.KindEmptyRecording, "record", "cancelled before usable audio was captured", ctx.Err())
		}
		session.AudioFile = destPath
		return ctx.Err()
	}
	if tooSmall {
		_ = os.Remove(destPath)
		return services.Wrap(services.KindEmptyRecording, "record", "capture produced no usable audio", statErr)
	}

	session.AudioFile = destPath
	session.ProgressMessage = fmt.Sprintf("Recorded %d bytes", info.Size())
	logger.Info("recording complete",
		logging.String("audio_file", destPath),
		logging.Int64("audio_bytes", info.Size()))
	return nil
}

// waitForEnd blocks until the recording should stop and reports whether the
// stop was a cancellation. With prefer_end_signal the recorder polls the bot
// handle and stops when the meeting ends; otherwise it records for the full
// duration cap.
func (r *Recorder) waitForEnd(ctx context.Context, handle meeting.Handle, maxDuration time.Duration) bool {
	deadline := time.NewTimer(maxDuration)
	defer deadline.Stop()

	if !r.cfg.Recording.PreferEndSignal {
		select {
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return true
		}
	}

	pollInterval := time.Duration(r.cfg.Recording.EndPollSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if handle == nil || handle.Ended() {
				return false
			}
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return true
		}
	}
}

// HealthCheck verifies the capture binary and audio directory.
func (r *Recorder) HealthCheck(ctx context.Context) stage.Health {
	const name = "recorder"
	if err := r.capture.Available(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	if err := os.MkdirAll(r.cfg.Paths.AudioDir, 0o755); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("audio directory: %v", err))
	}
	return stage.Healthy(name)
}

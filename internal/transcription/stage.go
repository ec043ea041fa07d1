package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"sunny/internal/config"
	"sunny/internal/logging"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/stage"
)

// Transcriber is the stage handler that turns recorded audio into a
// transcript stored on the session.
type Transcriber struct {
	store  *sessions.Store
	cfg    *config.Config
	logger *slog.Logger
	engine Engine
}

// NewTranscriber constructs the transcribing stage handler with the default
// whisper engine.
func NewTranscriber(cfg *config.Config, store *sessions.Store, logger *slog.Logger) *Transcriber {
	return NewTranscriberWithEngine(cfg, store, logger, NewWhisperEngine(cfg))
}

// NewTranscriberWithEngine allows injecting the engine (used in tests).
func NewTranscriberWithEngine(cfg *config.Config, store *sessions.Store, logger *slog.Logger, engine Engine) *Transcriber {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "transcriber"))
	}
	return &Transcriber{store: store, cfg: cfg, logger: stageLogger, engine: engine}
}

func (t *Transcriber) Prepare(ctx context.Context, session *sessions.Session) error {
	logger := logging.WithContext(ctx, t.logger)
	session.ProgressMessage = "Preparing transcription"

	if session.AudioFile == "" {
		return services.Wrap(services.KindEmptyRecording, "transcribe", "no recorded audio on session", nil)
	}
	info, err := os.Stat(session.AudioFile)
	if err != nil {
		return services.Wrap(services.KindEmptyRecording, "transcribe", "recorded audio missing", err)
	}
	if info.Size() < t.cfg.Recording.MinAudioBytes {
		return services.Wrap(services.KindEmptyAudio, "transcribe",
			fmt.Sprintf("recording too small (%d bytes)", info.Size()), nil)
	}
	logger.Info("starting transcription",
		logging.String("audio_file", session.AudioFile),
		logging.Int64("audio_bytes", info.Size()))
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, session *sessions.Session) error {
	logger := logging.WithContext(ctx, t.logger)

	transcript, err := t.engine.Transcribe(ctx, session.AudioFile)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.KindModelUnavailable, "transcribe", "transcription engine failed", err)
	}
	if len(transcript.Segments) == 0 {
		return services.Wrap(services.KindEmptyAudio, "transcribe", "no speech detected in recording", nil)
	}

	encoded, err := transcript.Encode()
	if err != nil {
		return services.Wrap(services.KindUnknown, "transcribe", "persist transcript", err)
	}
	session.TranscriptJSON = encoded
	session.ProgressMessage = fmt.Sprintf("Transcribed %d segments", len(transcript.Segments))
	logger.Info("transcription complete",
		logging.Int("segments", len(transcript.Segments)),
		logging.Int("words", transcript.WordCount()),
		logging.String("language", transcript.Language))
	return nil
}

// HealthCheck verifies the transcription binary and model are reachable.
func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	const name = "transcriber"
	if t.engine == nil {
		return stage.Unhealthy(name, "engine unavailable")
	}
	if err := t.engine.Available(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}

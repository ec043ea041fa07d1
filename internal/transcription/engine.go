package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"sunny/internal/config"
)

// Engine produces a transcript from a recorded audio file.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
	Available(ctx context.Context) error
}

// WhisperEngine shells out to whisper-cli. The binary writes a JSON sidecar
// next to its output prefix; the engine parses that into a Transcript.
type WhisperEngine struct {
	binary        string
	modelPath     string
	language      string
	threads       int
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewWhisperEngine builds an engine from configuration.
func NewWhisperEngine(cfg *config.Config) *WhisperEngine {
	return &WhisperEngine{
		binary:    cfg.Transcription.Command,
		modelPath: cfg.Transcription.ModelPath,
		language:  cfg.Transcription.Language,
		threads:   cfg.Transcription.Threads,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *WhisperEngine) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	e.commandRunner = runner
}

// Available verifies the binary and model file are reachable.
func (e *WhisperEngine) Available(context.Context) error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return fmt.Errorf("transcription binary %q not found: %w", e.binary, err)
	}
	if e.modelPath != "" {
		if _, err := os.Stat(e.modelPath); err != nil {
			return fmt.Errorf("transcription model %q: %w", e.modelPath, err)
		}
	}
	return nil
}

// Transcribe runs whisper-cli over the audio file and parses its JSON output.
func (e *WhisperEngine) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	outputPrefix := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	args := e.buildArgs(audioPath, outputPrefix)

	if err := e.run(ctx, e.binary, args...); err != nil {
		return Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	return loadWhisperJSON(outputPrefix + ".json")
}

func (e *WhisperEngine) buildArgs(audioPath, outputPrefix string) []string {
	args := []string{
		"-m", e.modelPath,
		"-f", audioPath,
		"-oj",
		"-of", outputPrefix,
	}
	if e.language != "" {
		args = append(args, "-l", e.language)
	}
	if e.threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.threads))
	}
	return args
}

func (e *WhisperEngine) run(ctx context.Context, name string, args ...string) error {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// whisperPayload mirrors the whisper-cli JSON output shape. Offsets are in
// milliseconds.
type whisperPayload struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func loadWhisperJSON(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, fmt.Errorf("read whisper output: %w", err)
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Transcript{}, fmt.Errorf("parse whisper output: %w", err)
	}

	transcript := Transcript{Language: payload.Result.Language}
	for _, entry := range payload.Transcription {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		transcript.Segments = append(transcript.Segments, Segment{
			Text:  text,
			Start: float64(entry.Offsets.From) / 1000,
			End:   float64(entry.Offsets.To) / 1000,
		})
	}
	return transcript, nil
}

package config

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRecording(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSummarize(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateRecording() error {
	if c.Recording.MaxDurationMinutes <= 0 {
		return errors.New("recording.max_duration_minutes must be positive")
	}
	if c.Recording.EndPollSeconds <= 0 {
		return errors.New("recording.end_poll_seconds must be positive")
	}
	if c.Recording.MinAudioBytes < 0 {
		return errors.New("recording.min_audio_bytes must not be negative")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.Command == "" {
		return errors.New("transcription.command must be set")
	}
	if c.Transcription.Threads <= 0 {
		return errors.New("transcription.threads must be positive")
	}
	if c.Transcription.Language != "" {
		if _, err := language.Parse(c.Transcription.Language); err != nil {
			return fmt.Errorf("transcription.language %q is not a valid language tag: %w", c.Transcription.Language, err)
		}
	}
	return nil
}

func (c *Config) validateSummarize() error {
	switch c.Summarize.Provider {
	case "openrouter", "gemini":
	default:
		return fmt.Errorf("summarize.provider must be one of openrouter, gemini (got %q)", c.Summarize.Provider)
	}
	if c.Summarize.ChunkWords <= 0 {
		return errors.New("summarize.chunk_words must be positive")
	}
	if c.Summarize.OverlapWords < 0 || c.Summarize.OverlapWords >= c.Summarize.ChunkWords {
		return errors.New("summarize.overlap_words must be non-negative and smaller than chunk_words")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.AnalyzerTimeout <= 0 {
		return errors.New("analysis.analyzer_timeout_seconds must be positive")
	}
	if c.Analysis.FanoutTimeout < c.Analysis.AnalyzerTimeout {
		return errors.New("analysis.fanout_timeout_seconds must not be smaller than analyzer_timeout_seconds")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxActiveMeetings <= 0 {
		return errors.New("workflow.max_active_meetings must be positive")
	}
	if c.Workflow.JoinMaxAttempts <= 0 {
		return errors.New("workflow.join_max_attempts must be positive")
	}
	if c.Workflow.SummarizeMaxAttempts <= 0 {
		return errors.New("workflow.summarize_max_attempts must be positive")
	}
	if c.Workflow.DeliverMaxAttempts <= 0 {
		return errors.New("workflow.deliver_max_attempts must be positive")
	}
	if c.Workflow.RetryBackoffSeconds < 0 {
		return errors.New("workflow.retry_backoff_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of auto, console, json (got %q)", c.Logging.Format)
	}
	return nil
}

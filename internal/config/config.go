package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	AudioDir  string `toml:"audio_dir"`
	ReportDir string `toml:"report_dir"`
	IngestDir string `toml:"ingest_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Meeting contains configuration for the browser meeting bot.
type Meeting struct {
	BotCommand         string `toml:"bot_command"`
	BotName            string `toml:"bot_name"`
	JoinTimeoutSeconds int    `toml:"join_timeout_seconds"`
}

// Recording contains configuration for audio capture and end-of-meeting detection.
type Recording struct {
	CaptureCommand     string `toml:"capture_command"`
	MaxDurationMinutes int    `toml:"max_duration_minutes"`
	EndPollSeconds     int    `toml:"end_poll_seconds"`
	MinAudioBytes      int64  `toml:"min_audio_bytes"`
	PreferEndSignal    bool   `toml:"prefer_end_signal"`
}

// Transcription contains configuration for the speech-to-text engine.
type Transcription struct {
	Command   string `toml:"command"`
	ModelPath string `toml:"model_path"`
	Language  string `toml:"language"`
	Threads   int    `toml:"threads"`
}

// Summarize contains configuration for LLM summarization.
type Summarize struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ChunkWords     int    `toml:"chunk_words"`
	OverlapWords   int    `toml:"overlap_words"`
}

// Analysis contains configuration for the analyzer fan-out.
type Analysis struct {
	Diarization     bool `toml:"diarization"`
	Sentiment       bool `toml:"sentiment"`
	Topics          bool `toml:"topics"`
	ActionItems     bool `toml:"action_items"`
	Analytics       bool `toml:"analytics"`
	Memory          bool `toml:"memory"`
	AnalyzerTimeout int  `toml:"analyzer_timeout_seconds"`
	FanoutTimeout   int  `toml:"fanout_timeout_seconds"`
}

// Email contains configuration for report delivery.
type Email struct {
	SMTPHost    string `toml:"smtp_host"`
	SMTPPort    int    `toml:"smtp_port"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	FromAddress string `toml:"from_address"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	SessionEvents  bool   `toml:"session_events"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for concurrency, polling, and retry budgets.
type Workflow struct {
	MaxActiveMeetings    int `toml:"max_active_meetings"`
	QueuePollInterval    int `toml:"queue_poll_interval"`
	ErrorRetryInterval   int `toml:"error_retry_interval"`
	JoinMaxAttempts      int `toml:"join_max_attempts"`
	SummarizeMaxAttempts int `toml:"summarize_max_attempts"`
	DeliverMaxAttempts   int `toml:"deliver_max_attempts"`
	RetryBackoffSeconds  int `toml:"retry_backoff_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Sunny.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Meeting: browser bot command and join policy
//   - Recording: capture command and end-of-meeting detection policy
//   - Transcription: speech-to-text engine settings
//   - Summarize: LLM provider, model, and transcript chunking
//   - Analysis: analyzer capability toggles and fan-out deadlines
//   - Email: SMTP settings for report delivery
//   - Notifications: ntfy operator notification settings
//   - Workflow: concurrency cap, polling intervals, retry budgets
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Meeting       Meeting       `toml:"meeting"`
	Recording     Recording     `toml:"recording"`
	Transcription Transcription `toml:"transcription"`
	Summarize     Summarize     `toml:"summarize"`
	Analysis      Analysis      `toml:"analysis"`
	Email         Email         `toml:"email"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sunny/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.AudioDir, c.Paths.ReportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.IngestDir) != "" {
		if err := os.MkdirAll(c.Paths.IngestDir, 0o755); err != nil {
			return fmt.Errorf("create ingest directory %q: %w", c.Paths.IngestDir, err)
		}
	}
	return nil
}

// WriteSample writes the annotated sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.DataDir,
		&c.Paths.LogDir,
		&c.Paths.AudioDir,
		&c.Paths.ReportDir,
		&c.Paths.IngestDir,
	}
	for _, field := range pathFields {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	c.Summarize.Provider = strings.ToLower(strings.TrimSpace(c.Summarize.Provider))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

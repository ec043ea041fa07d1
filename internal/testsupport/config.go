package testsupport

import (
	"path/filepath"
	"testing"

	"sunny/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.AudioDir = filepath.Join(base, "audio")
	cfg.Paths.ReportDir = filepath.Join(base, "reports")
	cfg.Paths.IngestDir = filepath.Join(base, "ingest")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Summarize.APIKey = "test"
	cfg.Email.SMTPHost = "smtp.test.invalid"
	cfg.Email.FromAddress = "sunny@test.invalid"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithMaxActiveMeetings overrides the concurrency cap on the test config.
func WithMaxActiveMeetings(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxActiveMeetings = n
	}
}

// WithProvider selects the summarization provider on the test config.
func WithProvider(name string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Summarize.Provider = name
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sunny/internal/analysis"
	"sunny/internal/config"
	"sunny/internal/delivery"
	"sunny/internal/meeting"
	"sunny/internal/notifications"
	"sunny/internal/recording"
	"sunny/internal/report"
	"sunny/internal/sessions"
	"sunny/internal/summarize"
	"sunny/internal/transcription"
)

// Manager coordinates session processing using the registered stage handlers.
type Manager struct {
	cfg      *config.Config
	store    *sessions.Store
	logger   *slog.Logger
	notifier notifications.Service

	joiner   *meeting.Joiner
	recorder *recording.Recorder
	stages   []pipelineStage

	pollInterval time.Duration
	errRetry     time.Duration
	slots        chan struct{}
	sleep        func(context.Context, time.Duration)

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastErr     error
	lastSession *sessions.Session
	active      map[int64]struct{}
}

// NewManager constructs a manager with the default joiner, recorder, stage
// handlers, and notifier. It fails when the summarization provider cannot be
// built from configuration.
func NewManager(cfg *config.Config, store *sessions.Store, logger *slog.Logger) (*Manager, error) {
	provider, err := summarize.NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	set := StageSet{
		Transcriber: transcription.NewTranscriber(cfg, store, logger),
		Analyzer:    analysis.NewStage(cfg, store, logger, analysis.NewRegistry(cfg, store, provider)),
		Summarizer:  summarize.NewStage(cfg, store, logger, summarize.NewSummarizer(cfg, logger, provider)),
		Reporter:    report.NewStage(cfg, store, logger),
		Deliverer:   delivery.NewStage(cfg, store, logger),
	}
	return NewManagerWithDependencies(cfg, store, logger,
		notifications.NewService(cfg),
		meeting.NewJoiner(cfg, logger),
		recording.NewRecorder(cfg, logger),
		set), nil
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithSleeper overrides the retry backoff sleeper (used in tests).
func WithSleeper(sleep func(context.Context, time.Duration)) ManagerOption {
	return func(m *Manager) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// WithPollInterval overrides the dispatch and cancel poll interval (used in tests).
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
			m.errRetry = d
		}
	}
}

// NewManagerWithDependencies allows injecting every collaborator (used in tests).
func NewManagerWithDependencies(
	cfg *config.Config,
	store *sessions.Store,
	logger *slog.Logger,
	notifier notifications.Service,
	joiner *meeting.Joiner,
	recorder *recording.Recorder,
	set StageSet,
	opts ...ManagerOption,
) *Manager {
	maxActive := cfg.Workflow.MaxActiveMeetings
	if maxActive < 1 {
		maxActive = 1
	}
	poll := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = time.Second
	}
	errRetry := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	if errRetry <= 0 {
		errRetry = poll
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		joiner:       joiner,
		recorder:     recorder,
		stages:       buildStages(set),
		pollInterval: poll,
		errRetry:     errRetry,
		slots:        make(chan struct{}, maxActive),
		sleep:        sleepContext,
		active:       make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (m *Manager) markActive(id int64) {
	m.mu.Lock()
	m.active[id] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) markIdle(id int64) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *Manager) isActive(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[id]
	return ok
}

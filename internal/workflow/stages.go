package workflow

import (
	"sunny/internal/sessions"
	"sunny/internal/stage"
)

// StageSet bundles the concrete handlers the manager runs after recording.
type StageSet struct {
	Transcriber stage.Handler
	Analyzer    stage.Handler
	Summarizer  stage.Handler
	Reporter    stage.Handler
	Deliverer   stage.Handler
}

type pipelineStage struct {
	name    string
	handler stage.Handler
	status  sessions.Status
	// next maps a finished stage to its successor; delivery is skipped for
	// sessions that did not request email.
	next func(*sessions.Session) sessions.Status
	// maxAttempts bounds retries for transient failures; kinds outside the
	// retryable set fail the session on the first occurrence regardless.
	maxAttempts func(*Manager) int
}

func buildStages(set StageSet) []pipelineStage {
	single := func(*Manager) int { return 1 }
	return []pipelineStage{
		{
			name:        "transcribe",
			handler:     set.Transcriber,
			status:      sessions.StatusTranscribing,
			next:        func(*sessions.Session) sessions.Status { return sessions.StatusAnalyzing },
			maxAttempts: single,
		},
		{
			name:        "analyze",
			handler:     set.Analyzer,
			status:      sessions.StatusAnalyzing,
			next:        func(*sessions.Session) sessions.Status { return sessions.StatusSummarizing },
			maxAttempts: single,
		},
		{
			name:        "summarize",
			handler:     set.Summarizer,
			status:      sessions.StatusSummarizing,
			next:        func(*sessions.Session) sessions.Status { return sessions.StatusReporting },
			maxAttempts: func(m *Manager) int { return m.cfg.Workflow.SummarizeMaxAttempts },
		},
		{
			name:    "report",
			handler: set.Reporter,
			status:  sessions.StatusReporting,
			next: func(s *sessions.Session) sessions.Status {
				if s.SendEmail {
					return sessions.StatusDelivering
				}
				return sessions.StatusCompleted
			},
			maxAttempts: single,
		},
		{
			name:        "deliver",
			handler:     set.Deliverer,
			status:      sessions.StatusDelivering,
			next:        func(*sessions.Session) sessions.Status { return sessions.StatusCompleted },
			maxAttempts: func(m *Manager) int { return m.cfg.Workflow.DeliverMaxAttempts },
		},
	}
}

func (m *Manager) stageForStatus(status sessions.Status) (pipelineStage, bool) {
	for _, stg := range m.stages {
		if stg.status == status && stg.handler != nil {
			return stg, true
		}
	}
	return pipelineStage{}, false
}

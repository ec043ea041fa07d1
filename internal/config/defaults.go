package config

const (
	defaultDataDir   = "~/.local/share/sunny"
	defaultLogDir    = "~/.local/share/sunny/logs"
	defaultAudioDir  = "~/.local/share/sunny/audio"
	defaultReportDir = "~/.local/share/sunny/reports"
	defaultAPIBind   = "127.0.0.1:7519"

	defaultBotName            = "Sunny AI - Assistant"
	defaultJoinTimeoutSeconds = 120

	defaultMaxDurationMinutes = 180
	defaultEndPollSeconds     = 5
	defaultMinAudioBytes      = 64 * 1024

	defaultTranscribeCommand = "whisper-cli"
	defaultLanguage          = "en"
	defaultThreads           = 4

	defaultSummarizeProvider = "openrouter"
	defaultSummarizeBaseURL  = "https://openrouter.ai/api/v1/chat/completions"
	defaultSummarizeModel    = "google/gemini-3-flash-preview"
	defaultSummarizeTimeout  = 60
	defaultChunkWords        = 4000
	defaultOverlapWords      = 200

	defaultAnalyzerTimeoutSeconds = 60
	defaultFanoutTimeoutSeconds   = 180

	defaultSMTPPort = 587

	defaultMaxActiveMeetings    = 2
	defaultQueuePollInterval    = 5
	defaultErrorRetryInterval   = 10
	defaultJoinMaxAttempts      = 3
	defaultSummarizeMaxAttempts = 3
	defaultDeliverMaxAttempts   = 3
	defaultRetryBackoffSeconds  = 2

	defaultLogFormat = "auto"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			AudioDir:  defaultAudioDir,
			ReportDir: defaultReportDir,
			APIBind:   defaultAPIBind,
		},
		Meeting: Meeting{
			BotName:            defaultBotName,
			JoinTimeoutSeconds: defaultJoinTimeoutSeconds,
		},
		Recording: Recording{
			MaxDurationMinutes: defaultMaxDurationMinutes,
			EndPollSeconds:     defaultEndPollSeconds,
			MinAudioBytes:      defaultMinAudioBytes,
			PreferEndSignal:    true,
		},
		Transcription: Transcription{
			Command:  defaultTranscribeCommand,
			Language: defaultLanguage,
			Threads:  defaultThreads,
		},
		Summarize: Summarize{
			Provider:       defaultSummarizeProvider,
			BaseURL:        defaultSummarizeBaseURL,
			Model:          defaultSummarizeModel,
			TimeoutSeconds: defaultSummarizeTimeout,
			ChunkWords:     defaultChunkWords,
			OverlapWords:   defaultOverlapWords,
		},
		Analysis: Analysis{
			Diarization:     true,
			Sentiment:       true,
			Topics:          true,
			ActionItems:     true,
			Analytics:       true,
			Memory:          true,
			AnalyzerTimeout: defaultAnalyzerTimeoutSeconds,
			FanoutTimeout:   defaultFanoutTimeoutSeconds,
		},
		Email: Email{
			SMTPPort: defaultSMTPPort,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			SessionEvents:  true,
			Errors:         true,
		},
		Workflow: Workflow{
			MaxActiveMeetings:    defaultMaxActiveMeetings,
			QueuePollInterval:    defaultQueuePollInterval,
			ErrorRetryInterval:   defaultErrorRetryInterval,
			JoinMaxAttempts:      defaultJoinMaxAttempts,
			SummarizeMaxAttempts: defaultSummarizeMaxAttempts,
			DeliverMaxAttempts:   defaultDeliverMaxAttempts,
			RetryBackoffSeconds:  defaultRetryBackoffSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

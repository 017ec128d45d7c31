package config

const (
	defaultConfigPath         = "~/.config/callqa/config.toml"
	defaultDataDir            = "~/.local/share/callqa"
	defaultLogDir             = "~/.local/share/callqa/logs"
	defaultUploadDir          = "~/.local/share/callqa/uploads"
	defaultRulesPath          = "~/.config/callqa/sop_rules.yaml"
	defaultPoliciesDir        = "~/.config/callqa/policies"
	defaultAPIBind            = "127.0.0.1:8000"
	defaultLLMBaseURL         = "https://api.groq.com/openai/v1/chat/completions"
	defaultLLMModel           = "llama-3.3-70b-versatile"
	defaultLLMReferer         = "https://github.com/callqa/callqa"
	defaultLLMTitle           = "callqa"
	defaultLLMTimeoutSeconds  = 60
	defaultWhisperXModel      = "base"
	defaultVADMethod          = "silero"
	defaultTask               = "transcribe"
	defaultTopDB              = 30
	defaultKeepBeforeSeconds  = 1.0
	defaultKeepAfterSeconds   = 3.0
	defaultLongCallSeconds    = 600
	defaultMaxConcurrentCalls = 2
	defaultStageTimeoutSecs   = 900
	defaultNtfyTimeoutSecs    = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			UploadDir:   defaultUploadDir,
			RulesPath:   defaultRulesPath,
			PoliciesDir: defaultPoliciesDir,
			APIBind:     defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Transcription: Transcription{
			WhisperXModel: defaultWhisperXModel,
			VADMethod:     defaultVADMethod,
			Diarize:       true,
			Task:          defaultTask,
		},
		Compaction: Compaction{
			TopDB:              defaultTopDB,
			KeepBeforeSeconds:  defaultKeepBeforeSeconds,
			KeepAfterSeconds:   defaultKeepAfterSeconds,
			MinDurationSeconds: defaultLongCallSeconds,
		},
		Sentiment: Sentiment{
			Enabled: true,
		},
		Workflow: Workflow{
			MaxConcurrentCalls: defaultMaxConcurrentCalls,
			StageTimeoutSecs:   defaultStageTimeoutSecs,
		},
		Notifications: Notifications{
			RequestTimeoutSecs: defaultNtfyTimeoutSecs,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

package model

// ================ Config ================

type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"500"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0.0"`
}

type AnswerModelConfig struct {
	Model       string  `envconfig:"ANSWER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"ANSWER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"ANSWER_TEMPERATURE" default:"0.2"`
}

type SpeechModelConfig struct {
	Model       string  `envconfig:"SPEECH_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"SPEECH_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"SPEECH_TEMPERATURE" default:"0.1"`
}

type TranslatorModelConfig struct {
	Model       string  `envconfig:"TRANSLATE_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"TRANSLATE_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"TRANSLATE_TEMPERATURE" default:"0.0"`
}

// RetrievalConfig fixes the per-category passage count. K is operator
// configuration, never user input.
type RetrievalConfig struct {
	LinkedInK int    `envconfig:"RETRIEVAL_LINKEDIN_K" default:"3"`
	GitHubK   int    `envconfig:"RETRIEVAL_GITHUB_K" default:"8"`
	MediumK   int    `envconfig:"RETRIEVAL_MEDIUM_K" default:"8"`
	KeyPrefix string `envconfig:"RETRIEVAL_KEY_PREFIX" default:"twin:index"`
}

// K returns the configured passage count for the given category.
func (c RetrievalConfig) K(cat Category) int {
	switch cat {
	case CategoryLinkedIn:
		return c.LinkedInK
	case CategoryGitHub:
		return c.GitHubK
	case CategoryMedium:
		return c.MediumK
	default:
		return 0
	}
}

type EmbeddingConfig struct {
	Model string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
}

type AnswerPromptConfig struct {
	SubjectName string `envconfig:"PROMPT_SUBJECT_NAME" default:"Alex"`
}

type TTSConfig struct {
	URL            string `envconfig:"TTS_URL"`
	Speaker        string `envconfig:"TTS_SPEAKER" default:"p225"`
	TimeoutSeconds int    `envconfig:"TTS_TIMEOUT_SECONDS" default:"30"`
}

type TraceConfig struct {
	Stream     string `envconfig:"TRACE_STREAM" default:"twin:trace"`
	MaxLen     int64  `envconfig:"TRACE_STREAM_MAXLEN" default:"10000"`
	ToRedis    bool   `envconfig:"TRACE_TO_REDIS" default:"true"`
	SummaryLen int    `envconfig:"TRACE_SUMMARY_LEN" default:"200"`
}

type ServerConfig struct {
	Port           string `envconfig:"PORT" default:"8080"`
	RequestTimeout string `envconfig:"REQUEST_TIMEOUT" default:"60s"`
	AllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

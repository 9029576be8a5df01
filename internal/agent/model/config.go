package model

// ================ Config ================
type ConversationConfig struct {
	// TTL is the Redis expiry for conversation keys. "0" keeps conversations
	// indefinitely, which is the default lifecycle for support transcripts.
	TTL string `envconfig:"CONVERSATION_TTL" default:"0"`
	Classifier struct {
		MaxTurns int `envconfig:"CONVERSATION_CLASSIFIER_MAX_TURNS" default:"5"`
	}
	// UserID binds new conversations to a member account for record lookups.
	// An unbound conversation escalates on any operations intent.
	UserID string `envconfig:"CONVERSATION_USER_ID"`
}

type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"256"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0.1"`
}

type ComposerModelConfig struct {
	Model       string  `envconfig:"COMPOSER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"COMPOSER_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"COMPOSER_TEMPERATURE" default:"0.4"`
}

type RetrievalConfig struct {
	CorpusPath    string  `envconfig:"KB_CORPUS_PATH" default:"data/kb.jsonl"`
	MinConfidence float64 `envconfig:"KB_MIN_CONFIDENCE" default:"0.5"`
}

type StoreConfig struct {
	MembersPath  string `envconfig:"MEMBERS_DB_PATH" default:"data/members.db"`
	HelpdeskPath string `envconfig:"HELPDESK_DB_PATH" default:"data/helpdesk.db"`
}

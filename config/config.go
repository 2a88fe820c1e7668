package config

import "os"

// AppName is used as the PostgreSQL schema name and the Pub/Sub topic prefix.
const AppName = "payflo"

// OpenAI settings for the bill/order analysis client. BaseURL is overridable
// so tests can point the client at a local server.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

func OpenAIBaseURL() string {
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		return v
	}
	return DefaultOpenAIBaseURL
}

func OpenAIModel() string {
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		return v
	}
	return DefaultOpenAIModel
}

func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

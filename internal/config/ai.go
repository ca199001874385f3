package config

import "os"

// AIConfig holds the settings of the reference judge
type AIConfig struct {
	APIKey     string `json:"-"` // Never serialize
	BaseURL    string `json:"baseUrl"`
	JudgeModel string `json:"judgeModel"`
	TimeoutMS  int    `json:"timeoutMs"`
}

// DefaultAIConfig returns the default AI configuration
func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		APIKey:     os.Getenv("GEMINI_API_KEY"),
		BaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/models"),
		JudgeModel: getEnv("GEMINI_MODEL_JUDGE", "gemini-2.0-flash"),
		TimeoutMS:  30000,
	}
}

// IsEnabled returns true if the AI API is configured
func (c *AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// ModelEndpoint returns the full endpoint for a given model
func (c *AIConfig) ModelEndpoint(model string) string {
	return c.BaseURL + "/" + model + ":generateContent"
}

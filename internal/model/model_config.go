package model

// ModelConfig is a named provider/model pair used for decomposition calls.
// The API key never leaves the server; clients reference keys by env name.
type ModelConfig struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Provider    string  `json:"provider"` // "openai" | "anthropic"
	Model       string  `json:"model"`
	APIKey      string  `json:"-"`
	APIKeyEnv   string  `json:"api_key_env,omitempty"`
	BaseURL     string  `json:"base_url,omitempty"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	IsDefault   bool    `json:"is_default"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

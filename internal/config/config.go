package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// LLMConfig contains settings shared by every model provider.
// Per-task credentials travel on the task's model info; the values here are
// fallbacks used when a task does not carry its own.
type LLMConfig struct {
	DefaultProvider       string `mapstructure:"default_provider" validate:"required,oneof=gemini ollama"`
	GeminiAPIKey          string `mapstructure:"gemini_api_key"`
	OllamaHost            string `mapstructure:"ollama_host" validate:"omitempty,url"`
	MaxRetries            int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds     int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" validate:"gt=0"`
}

// TaskConfig contains the task engine defaults.
type TaskConfig struct {
	// ConcurrencyLimit is used for projects without their own setting.
	ConcurrencyLimit       int `mapstructure:"concurrency_limit" validate:"gt=0,lte=64"`
	MaxErrorDetails        int `mapstructure:"max_error_details" validate:"gt=0"`
	NoteMaxLength          int `mapstructure:"note_max_length" validate:"gt=0"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gte=0"`
}

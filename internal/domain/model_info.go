package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Known model providers.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// ModelInfo describes the model a task talks to, including the credentials
// needed to reach it. It is stored serialized on the task row.
type ModelInfo struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"apiKey,omitempty"`
	Endpoint    string  `json:"endpoint,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int32   `json:"maxTokens,omitempty"`
}

// ParseModelInfo decodes the serialized model info of a task.
func ParseModelInfo(raw string) (ModelInfo, error) {
	var mi ModelInfo
	if strings.TrimSpace(raw) == "" {
		return mi, fmt.Errorf("%w: empty", ErrInvalidModelInfo)
	}
	if err := json.Unmarshal([]byte(raw), &mi); err != nil {
		return mi, fmt.Errorf("%w: %v", ErrInvalidModelInfo, err)
	}
	mi.Provider = strings.ToLower(strings.TrimSpace(mi.Provider))
	if mi.Provider == "" {
		return mi, fmt.Errorf("%w: provider is required", ErrInvalidModelInfo)
	}
	if strings.TrimSpace(mi.Model) == "" {
		return mi, fmt.Errorf("%w: model is required", ErrInvalidModelInfo)
	}
	return mi, nil
}

// LogValue keeps credentials out of structured logs.
func (m ModelInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", m.Provider),
		slog.String("model", m.Model),
		slog.String("endpoint", m.Endpoint),
		slog.Bool("api_key_present", m.APIKey != ""),
	)
}

// GenerationOptions is what every per-item domain service receives besides
// the item identity.
type GenerationOptions struct {
	Model    ModelInfo
	Language string
}

// Package ollama implements llm.Provider on a local or remote Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ollama/ollama/api"
	"github.com/phrazzld/dataset-forge/internal/config"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/llm"
)

// Name is the provider name matched against domain.ModelInfo.Provider.
const Name = domain.ProviderOllama

// Provider talks to Ollama's chat endpoint. Model infos with an Endpoint
// override the configured host.
type Provider struct {
	defaultHost string
	httpClient  *http.Client
	logger      *slog.Logger

	mu      sync.Mutex
	clients map[string]*api.Client
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider creates an Ollama provider using cfg.OllamaHost as the
// default server.
func NewProvider(cfg config.LLMConfig, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		defaultHost: cfg.OllamaHost,
		httpClient:  http.DefaultClient,
		logger:      logger.With("component", "ollama_provider"),
		clients:     make(map[string]*api.Client),
	}
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return Name }

// Complete implements llm.Completer.
func (p *Provider) Complete(ctx context.Context, model domain.ModelInfo, req llm.Request) (string, error) {
	client, err := p.client(model.Endpoint)
	if err != nil {
		return "", err
	}

	messages := make([]api.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	user := api.Message{Role: "user", Content: req.Prompt}
	for _, img := range req.Images {
		user.Images = append(user.Images, api.ImageData(img.Data))
	}
	messages = append(messages, user)

	stream := false
	chat := &api.ChatRequest{
		Model:    model.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  options(model),
	}
	if req.JSON {
		chat.Format = json.RawMessage(`"json"`)
	}

	p.logger.DebugContext(ctx, "calling ollama",
		"model", model.Model,
		"prompt_length", len(req.Prompt),
		"images", len(req.Images))

	var b strings.Builder
	err = client.Chat(ctx, chat, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", classify(err)
	}
	return b.String(), nil
}

func options(model domain.ModelInfo) map[string]any {
	opts := make(map[string]any)
	if model.Temperature > 0 {
		opts["temperature"] = model.Temperature
	}
	if model.MaxTokens > 0 {
		opts["num_predict"] = model.MaxTokens
	}
	return opts
}

func (p *Provider) client(endpoint string) (*api.Client, error) {
	host := endpoint
	if host == "" {
		host = p.defaultHost
	}
	if host == "" {
		return nil, fmt.Errorf("%w: ollama host is not set", llm.ErrInvalidConfig)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[host]; ok {
		return c, nil
	}
	base, err := url.Parse(host)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid ollama host %q", llm.ErrInvalidConfig, host)
	}
	c := api.NewClient(base, p.httpClient)
	p.clients[host] = c
	return c, nil
}

// classify marks client-side status errors as permanent.
func classify(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) && llm.PermanentStatus(statusErr.StatusCode) {
		return fmt.Errorf("%w: ollama rejected the request: %w", llm.ErrInvalidConfig, err)
	}
	return err
}

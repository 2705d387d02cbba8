package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/phrazzld/dataset-forge/internal/config"
	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/llm"
	"google.golang.org/genai"
)

// Name is the provider name matched against domain.ModelInfo.Provider.
const Name = domain.ProviderGemini

// contentGenerator is the part of *genai.Models the provider uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// clientFactory builds a contentGenerator for one API key.
type clientFactory func(ctx context.Context, apiKey string) (contentGenerator, error)

// Provider talks to Gemini.
type Provider struct {
	defaultKey string
	newClient  clientFactory
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]contentGenerator
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider creates a Gemini provider. cfg.GeminiAPIKey is the fallback
// key for tasks that do not carry one.
func NewProvider(cfg config.LLMConfig, logger *slog.Logger) *Provider {
	return newProvider(cfg.GeminiAPIKey, genaiFactory, logger)
}

func newProvider(defaultKey string, factory clientFactory, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		defaultKey: defaultKey,
		newClient:  factory,
		logger:     logger.With("component", "gemini_provider"),
		clients:    make(map[string]contentGenerator),
	}
}

func genaiFactory(ctx context.Context, apiKey string) (contentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return Name }

// Complete implements llm.Completer.
func (p *Provider) Complete(ctx context.Context, model domain.ModelInfo, req llm.Request) (string, error) {
	client, err := p.client(ctx, model.APIKey)
	if err != nil {
		return "", err
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MimeType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if model.Temperature > 0 {
		temp := model.Temperature
		cfg.Temperature = &temp
	}
	if model.MaxTokens > 0 {
		cfg.MaxOutputTokens = model.MaxTokens
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	p.logger.DebugContext(ctx, "calling gemini",
		"model", model.Model,
		"prompt_length", len(req.Prompt),
		"images", len(req.Images))

	resp, err := client.GenerateContent(ctx, model.Model, contents, cfg)
	if err != nil {
		return "", classify(err)
	}
	return responseText(resp)
}

func (p *Provider) client(ctx context.Context, apiKey string) (contentGenerator, error) {
	if apiKey == "" {
		apiKey = p.defaultKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is not set", llm.ErrInvalidConfig)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[apiKey]; ok {
		return c, nil
	}
	c, err := p.newClient(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %v", llm.ErrInvalidConfig, err)
	}
	p.clients[apiKey] = c
	return c, nil
}

// responseText extracts the first candidate's text.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", llm.ErrEmptyResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked: %s", llm.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", llm.ErrEmptyResponse)
	}

	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return "", fmt.Errorf("%w: finish reason %s", llm.ErrContentBlocked, cand.FinishReason)
	}
	if cand.Content == nil {
		return "", fmt.Errorf("%w: empty content", llm.ErrEmptyResponse)
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no text parts", llm.ErrEmptyResponse)
	}
	return b.String(), nil
}

// classify marks client-side API errors as permanent.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && llm.PermanentStatus(apiErr.Code) {
		return fmt.Errorf("%w: gemini rejected the request: %w", llm.ErrInvalidConfig, err)
	}
	return err
}

package generation

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/llm"
	"github.com/phrazzld/dataset-forge/internal/store"
	"github.com/phrazzld/dataset-forge/internal/task"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"join":   strings.Join,
	"letter": func(i int) string { return string(rune('A' + i)) },
}).ParseFS(promptFS, "prompts/*.tmpl"))

// Stores groups the repositories the services read and write.
type Stores struct {
	Chunks        store.ChunkStore
	Questions     store.QuestionStore
	Datasets      store.DatasetStore
	Conversations store.ConversationStore
	Tags          store.TagStore
	Images        store.ImageStore
	Evals         store.EvalStore
	Files         store.FileStore
}

// Config tunes the services.
type Config struct {
	// QuestionsPerChunk is how many questions are asked about one chunk or image.
	QuestionsPerChunk int
	// EvalRowsPerChunk is how many benchmark rows are generated from one chunk.
	EvalRowsPerChunk int
	// ChunkSize is the target chunk length in characters when splitting files.
	ChunkSize int
	// ConversationTurns is the number of follow-up exchanges in a conversation.
	ConversationTurns int
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		QuestionsPerChunk: 5,
		EvalRowsPerChunk:  3,
		ChunkSize:         1500,
		ConversationTurns: 2,
	}
}

// Service implements every per-item service the task handlers depend on.
type Service struct {
	llm      llm.Completer
	stores   Stores
	cfg      Config
	logger   *slog.Logger
	readFile func(path string) ([]byte, error)
}

var (
	_ task.QuestionGenerator      = (*Service)(nil)
	_ task.AnswerGenerator        = (*Service)(nil)
	_ task.ChunkCleaner           = (*Service)(nil)
	_ task.DatasetEvaluator       = (*Service)(nil)
	_ task.ConversationGenerator  = (*Service)(nil)
	_ task.TagGenerator           = (*Service)(nil)
	_ task.TagQuestionGenerator   = (*Service)(nil)
	_ task.ImageQuestionGenerator = (*Service)(nil)
	_ task.EvalQuestionGenerator  = (*Service)(nil)
	_ task.ModelEvaluator         = (*Service)(nil)
	_ task.FileProcessor          = (*Service)(nil)
)

// NewService creates the generation services. Zero fields of cfg take
// their defaults.
func NewService(completer llm.Completer, stores Stores, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.QuestionsPerChunk <= 0 {
		cfg.QuestionsPerChunk = def.QuestionsPerChunk
	}
	if cfg.EvalRowsPerChunk <= 0 {
		cfg.EvalRowsPerChunk = def.EvalRowsPerChunk
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ConversationTurns <= 0 {
		cfg.ConversationTurns = def.ConversationTurns
	}
	return &Service{
		llm:      completer,
		stores:   stores,
		cfg:      cfg,
		logger:   logger.With("component", "generation"),
		readFile: os.ReadFile,
	}
}

// render executes the named prompt template.
func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", name, err)
	}
	return buf.String(), nil
}

// completeJSON renders a prompt, asks for a JSON answer and decodes it into out.
func (s *Service) completeJSON(
	ctx context.Context,
	opts domain.GenerationOptions,
	tmpl string,
	data any,
	images []llm.Image,
	out any,
) error {
	prompt, err := render(tmpl, data)
	if err != nil {
		return err
	}
	text, err := s.llm.Complete(ctx, opts.Model, llm.Request{
		System: systemPrompt(opts.Language),
		Prompt: prompt,
		Images: images,
		JSON:   true,
	})
	if err != nil {
		return err
	}
	return parseJSON(text, out)
}

// completeText renders a prompt and returns the trimmed plain-text answer.
func (s *Service) completeText(
	ctx context.Context,
	opts domain.GenerationOptions,
	tmpl string,
	data any,
) (string, error) {
	prompt, err := render(tmpl, data)
	if err != nil {
		return "", err
	}
	text, err := s.llm.Complete(ctx, opts.Model, llm.Request{
		System: systemPrompt(opts.Language),
		Prompt: prompt,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func systemPrompt(language string) string {
	if language == "" {
		language = "en"
	}
	return "You build training data for language models. " +
		"Write all generated content in the language with code " + language + "."
}

// parseJSON decodes model output, tolerating a surrounding markdown fence
// or prose before the first brace.
func parseJSON(text string, out any) error {
	body := strings.TrimSpace(text)
	if i := strings.IndexAny(body, "{["); i > 0 {
		body = body[i:]
	}
	if j := strings.LastIndexAny(body, "}]"); j >= 0 && j < len(body)-1 {
		body = body[:j+1]
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// nonEmpty trims items, drops blanks and keeps at most limit entries.
func nonEmpty(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

package llm

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/domain"
)

// Image is an inline picture sent along with a prompt.
type Image struct {
	Data     []byte
	MimeType string
}

// Request is one completion call.
type Request struct {
	// System, when set, is sent as the system instruction.
	System string
	Prompt string
	Images []Image

	// JSON asks the provider for a JSON-only answer when it supports it.
	JSON bool
}

// Completer turns a request into model text.
type Completer interface {
	Complete(ctx context.Context, model domain.ModelInfo, req Request) (string, error)
}

// Provider is a Completer for one backend, registered under Name.
type Provider interface {
	Completer
	Name() string
}

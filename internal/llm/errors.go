package llm

import "errors"

// Errors returned by providers and the Router.
var (
	// ErrProviderNotRegistered is returned when a model info names a
	// provider the router does not know.
	ErrProviderNotRegistered = errors.New("model provider not registered")

	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("empty response from language model")

	// ErrContentBlocked is returned when the model refused the content.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure wraps the last error once retries are exhausted.
	ErrTransientFailure = errors.New("transient language model failure")

	// ErrInvalidConfig is returned when a provider cannot be configured
	// from the model info, e.g. a missing API key.
	ErrInvalidConfig = errors.New("invalid language model configuration")
)

// IsPermanent reports whether retrying err cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrProviderNotRegistered) ||
		errors.Is(err, ErrEmptyResponse) ||
		errors.Is(err, ErrContentBlocked) ||
		errors.Is(err, ErrInvalidConfig)
}

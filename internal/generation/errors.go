package generation

import "errors"

var (
	// ErrInvalidResponse is returned when the model output cannot be parsed
	// or does not contain what the prompt asked for.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrEmptyContent is returned when the item to generate from has no text.
	ErrEmptyContent = errors.New("work item has no content")

	// ErrUnsupportedFile is returned for uploaded files that cannot be read
	// as text.
	ErrUnsupportedFile = errors.New("unsupported file type")
)

package prompt

import "errors"

var (
	ErrNotFound      = errors.New("prompt pair not found")
	ErrStorage       = errors.New("prompt storage failure")
	ErrStoreNil      = errors.New("prompt store is nil")
	ErrGeneratorNil  = errors.New("prompt generator is nil")
	ErrEmptyPrompt   = errors.New("prompt is empty")
	ErrInvalidConfig = errors.New("invalid generator configuration")
	ErrGeneration    = errors.New("text generation failed")
)

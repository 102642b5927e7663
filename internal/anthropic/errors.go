package anthropic

import "fmt"

// ProviderError reports a failure reaching or using the Anthropic API:
// network errors, non-200 responses, retry exhaustion, or an open circuit.
type ProviderError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Type != "":
		return fmt.Sprintf("api error %d: %s — %s", e.StatusCode, e.Type, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	default:
		return e.Message
	}
}

// ExtractionError reports a response that arrived but could not be parsed
// into the requested structure. Callers treat it as recoverable and fall
// back to documented defaults; only provider failures propagate.
type ExtractionError struct {
	Raw string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("parse extraction response: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

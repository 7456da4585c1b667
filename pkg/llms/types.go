// Package llms abstracts the language-model capability behind a single
// Chat call so stages depend on an interface, not a vendor client.
// Deterministic fakes implement the same interface in tests.
package llms

import (
	"context"
	"errors"
	"fmt"

	"github.com/kadirpekel/gateflow/pkg/chat"
)

// Completion is the result of one model invocation.
type Completion struct {
	Text   string
	Tokens int
}

// Provider is the LLM capability boundary. Implementations may fail
// with transient or permanent errors; callers do not retry at this
// layer (transport-level retry lives in httpclient).
type Provider interface {
	// ModelName returns the configured model identifier.
	ModelName() string

	// Chat sends the transcript to the model and returns its reply.
	Chat(ctx context.Context, messages []chat.Message) (*Completion, error)

	// Close releases provider resources.
	Close() error
}

// ErrEmptyResponse is returned when the API answered without content.
var ErrEmptyResponse = errors.New("model returned empty response")

// APIError reports a provider API failure.
type APIError struct {
	Provider string
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

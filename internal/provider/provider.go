// Package provider holds the outbound AI service clients and the
// fallback orchestration that turns a session's history into a model
// response.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Chat message roles on the provider wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message sent to a generation provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest carries everything a generation call needs.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Generator is the generation capability of a provider.
type Generator interface {
	Name() string
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
	// Available reports whether the provider has a credential configured.
	Available() bool
}

// Synthesizer converts text to speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
	Available() bool
}

// Transcriber converts speech audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	Available() bool
}

// Failure causes distinguished by the orchestrator and its callers.
var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNoCredential    = errors.New("no API credential configured")
	ErrEmptyCompletion = errors.New("provider returned an empty completion")
)

// Error wraps a provider failure with the provider's name.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

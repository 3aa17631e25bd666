package channel

import "context"

// Message is an inbound message from a transport. SessionID carries the
// transport's namespace prefix (web:, tg:, dc:).
type Message struct {
	ID        string
	Channel   string
	SessionID string
	Content   string
	Audio     []byte
	Metadata  map[string]string
	Timestamp int64
}

// Response is sent back to the transport. Audio is set when the session
// requested synthesized speech.
type Response struct {
	Content string
	Audio   []byte
}

// Adapter is the interface for transport adapters.
type Adapter interface {
	// Start starts the adapter
	Start(ctx context.Context) error

	// Stop stops the adapter
	Stop() error

	// SendMessage delivers a response for the given session
	SendMessage(sessionID string, resp *Response) error

	// Incoming returns the channel of inbound messages
	Incoming() <-chan *Message

	// Name returns the adapter name
	Name() string

	// IsEnabled reports whether the adapter is configured
	IsEnabled() bool
}

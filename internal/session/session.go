// Package session defines the conversation session entity: its state
// enum, history, and tunable parameters.
package session

import (
	"encoding/json"
	"strings"
	"time"
)

// Platform identifies the transport a session originated from.
type Platform string

const (
	PlatformWeb      Platform = "web"
	PlatformTelegram Platform = "telegram"
	PlatformDiscord  Platform = "discord"
)

// State is the lifecycle state of a session. Transitions are monotonic:
// Consent moves to Active or Rejected; Rejected is terminal.
type State string

const (
	StateConsent  State = "consent"
	StateActive   State = "active"
	StateRejected State = "rejected"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in the session history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the per-session tunables mutated by commands.
type Params struct {
	Provider      string  `json:"provider"`
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`
	SystemPrompt  string  `json:"system_prompt"`
	MemorySize    int     `json:"memory_size"`
	MaxTokens     int     `json:"max_tokens"`
	SpeechEnabled bool    `json:"speech_enabled"`
	VoiceID       string  `json:"voice_id"`
}

// Session is the durable state of one ongoing conversation.
type Session struct {
	ID             string    `json:"id"`
	Platform       Platform  `json:"platform"`
	State          State     `json:"state"`
	History        []Message `json:"history"`
	Params         Params    `json:"params"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	RejectedAt     time.Time `json:"rejected_at,omitempty"`
}

// New creates a session in the Consent state with the given parameters.
// Platform is derived from the id's namespace prefix.
func New(id string, params Params) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:             id,
		Platform:       PlatformForID(id),
		State:          StateConsent,
		History:        []Message{},
		Params:         params,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// PlatformForID derives the origin platform from the id prefix.
func PlatformForID(id string) Platform {
	switch {
	case strings.HasPrefix(id, "tg:"):
		return PlatformTelegram
	case strings.HasPrefix(id, "dc:"):
		return PlatformDiscord
	default:
		return PlatformWeb
	}
}

// Append adds one turn to the history and trims to the memory cap.
func (s *Session) Append(role, content string) {
	s.History = append(s.History, Message{Role: role, Content: content})
	s.TrimHistory()
}

// TrimHistory drops the oldest entries until the history fits within
// twice the memory size (one user and one assistant turn per exchange).
func (s *Session) TrimHistory() {
	max := 2 * s.Params.MemorySize
	if max > 0 && len(s.History) > max {
		s.History = s.History[len(s.History)-max:]
	}
}

// Touch records activity now.
func (s *Session) Touch() {
	s.LastActivityAt = time.Now().UTC()
}

// Accept moves the session from Consent to Active. It is a no-op in any
// other state.
func (s *Session) Accept() {
	if s.State == StateConsent {
		s.State = StateActive
	}
}

// Reject moves the session from Consent to the terminal Rejected state
// and records when, so the sweeper can delete it after the grace delay.
func (s *Session) Reject() {
	if s.State == StateConsent {
		s.State = StateRejected
		s.RejectedAt = time.Now().UTC()
	}
}

// Expired reports whether the session is past the idle timeout, or past
// the post-rejection grace delay.
func (s *Session) Expired(now time.Time, timeout, rejectGrace time.Duration) bool {
	if s.State == StateRejected && !s.RejectedAt.IsZero() {
		return now.Sub(s.RejectedAt) >= rejectGrace
	}
	return now.Sub(s.LastActivityAt) >= timeout
}

// Encode serializes the session for the durable backing.
func (s *Session) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode reconstructs a session from its serialized form.
func Decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

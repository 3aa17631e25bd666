package session

import (
	"fmt"
	"testing"
	"time"
)

func testParams() Params {
	return Params{
		Provider:     "openai",
		Temperature:  1.0,
		SystemPrompt: "You are a helpful assistant.",
		MemorySize:   3,
		MaxTokens:    1000,
		VoiceID:      "nova",
	}
}

func TestNewStartsInConsent(t *testing.T) {
	s := New("web:abc", testParams())
	if s.State != StateConsent {
		t.Errorf("expected consent state, got %s", s.State)
	}
	if len(s.History) != 0 {
		t.Errorf("expected empty history, got %d", len(s.History))
	}
}

func TestPlatformForID(t *testing.T) {
	tests := []struct {
		id   string
		want Platform
	}{
		{"web:abc", PlatformWeb},
		{"tg:12345", PlatformTelegram},
		{"dc:67890", PlatformDiscord},
		{"noprefix", PlatformWeb},
	}
	for _, tt := range tests {
		if got := PlatformForID(tt.id); got != tt.want {
			t.Errorf("PlatformForID(%q) = %s, want %s", tt.id, got, tt.want)
		}
	}
}

func TestHistoryCapHolds(t *testing.T) {
	s := New("web:abc", testParams())
	for i := 0; i < 20; i++ {
		s.Append(RoleUser, fmt.Sprintf("question %d", i))
		s.Append(RoleAssistant, fmt.Sprintf("answer %d", i))
		if len(s.History) > 2*s.Params.MemorySize {
			t.Fatalf("history length %d exceeds cap %d", len(s.History), 2*s.Params.MemorySize)
		}
	}
	// Oldest entries drop first.
	if s.History[len(s.History)-1].Content != "answer 19" {
		t.Errorf("newest entry should survive, got %q", s.History[len(s.History)-1].Content)
	}
}

func TestTrimAfterShrinkingMemory(t *testing.T) {
	s := New("web:abc", testParams())
	for i := 0; i < 6; i++ {
		s.Append(RoleUser, "q")
	}
	s.Params.MemorySize = 1
	s.TrimHistory()
	if len(s.History) != 2 {
		t.Errorf("expected history trimmed to 2, got %d", len(s.History))
	}
}

func TestStateMonotonic(t *testing.T) {
	s := New("web:abc", testParams())
	s.Accept()
	if s.State != StateActive {
		t.Fatalf("expected active, got %s", s.State)
	}
	// Active never reverts.
	s.Reject()
	if s.State != StateActive {
		t.Errorf("active session must not transition on Reject, got %s", s.State)
	}

	r := New("web:def", testParams())
	r.Reject()
	if r.State != StateRejected {
		t.Fatalf("expected rejected, got %s", r.State)
	}
	if r.RejectedAt.IsZero() {
		t.Error("rejection time should be recorded")
	}
	// Rejected is terminal.
	r.Accept()
	if r.State != StateRejected {
		t.Errorf("rejected session must stay rejected, got %s", r.State)
	}
}

func TestRoundTrip(t *testing.T) {
	s := New("tg:42", testParams())
	s.Accept()
	s.Append(RoleUser, "hello")
	s.Append(RoleAssistant, "hi there")

	data, err := s.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got.ID != s.ID || got.Platform != s.Platform || got.State != s.State {
		t.Errorf("identity fields differ after round trip: %+v vs %+v", got, s)
	}
	if len(got.History) != len(s.History) {
		t.Fatalf("history length differs: %d vs %d", len(got.History), len(s.History))
	}
	for i := range got.History {
		if got.History[i] != s.History[i] {
			t.Errorf("history[%d] differs: %+v vs %+v", i, got.History[i], s.History[i])
		}
	}
	if got.Params != s.Params {
		t.Errorf("params differ: %+v vs %+v", got.Params, s.Params)
	}
	if !got.CreatedAt.Equal(s.CreatedAt) {
		t.Errorf("created_at differs: %v vs %v", got.CreatedAt, s.CreatedAt)
	}
}

func TestExpired(t *testing.T) {
	timeout := time.Hour
	grace := 5 * time.Second
	now := time.Now().UTC()

	s := New("web:abc", testParams())
	if s.Expired(now, timeout, grace) {
		t.Error("fresh session should not be expired")
	}
	if !s.Expired(now.Add(2*time.Hour), timeout, grace) {
		t.Error("idle session past timeout should be expired")
	}

	r := New("web:def", testParams())
	r.Reject()
	if r.Expired(now, timeout, grace) {
		t.Error("rejected session within grace should not be expired")
	}
	if !r.Expired(now.Add(10*time.Second), timeout, grace) {
		t.Error("rejected session past grace should be expired")
	}
}

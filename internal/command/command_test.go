package command

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/convohub/convo-gateway/internal/session"
	"github.com/convohub/convo-gateway/internal/store"
)

func newTestDispatcher() (*Dispatcher, *store.Store) {
	st := store.New(nil, store.Options{
		Defaults: session.Params{
			Provider:    "openai",
			Temperature: 1.0,
			MemorySize:  20,
			MaxTokens:   1000,
			VoiceID:     "nova",
		},
	}, slog.Default())
	d := NewDispatcher(st, []string{"openai", "mistral"}, []string{"nova", "echo"})
	return d, st
}

func activeSession(st *store.Store) *session.Session {
	s := st.LoadOrCreate(context.Background(), "web:test")
	s.Accept()
	return s
}

func TestHelp(t *testing.T) {
	d, st := newTestDispatcher()
	out := d.Dispatch(context.Background(), activeSession(st), "/help")
	if !strings.Contains(out, "/temperature") {
		t.Errorf("help should list commands, got %q", out)
	}
}

func TestVerbCaseInsensitive(t *testing.T) {
	d, st := newTestDispatcher()
	s := activeSession(st)
	out := d.Dispatch(context.Background(), s, "/TEMPERATURE 0.5")
	if s.Params.Temperature != 0.5 {
		t.Errorf("expected temperature 0.5, got %g (output %q)", s.Params.Temperature, out)
	}
}

func TestTemperatureOutOfRange(t *testing.T) {
	d, st := newTestDispatcher()
	s := activeSession(st)
	before := s.Params.Temperature

	out := d.Dispatch(context.Background(), s, "/temperature 3.5")
	if s.Params.Temperature != before {
		t.Errorf("rejected command must not mutate, temperature went to %g", s.Params.Temperature)
	}
	if !strings.Contains(out, "between 0 and 2") {
		t.Errorf("expected usage message, got %q", out)
	}
}

func TestResetIdempotent(t *testing.T) {
	d, st := newTestDispatcher()
	s := activeSession(st)
	s.Append(session.RoleUser, "hello")
	s.Append(session.RoleAssistant, "hi")

	for i := 0; i < 2; i++ {
		out := d.Dispatch(context.Background(), s, "/reset")
		if len(s.History) != 0 {
			t.Fatalf("reset %d left %d history entries", i+1, len(s.History))
		}
		if strings.Contains(strings.ToLower(out), "error") {
			t.Fatalf("reset %d reported an error: %q", i+1, out)
		}
	}
}

func TestProviderEnumOnly(t *testing.T) {
	d, st := newTestDispatcher()
	s := activeSession(st)

	// Membership is checked; credential presence is not.
	out := d.Dispatch(context.Background(), s, "/provider mistral")
	if s.Params.Provider != "mistral" {
		t.Errorf("expected provider mistral, got %q (output %q)", s.Params.Provider, out)
	}

	out = d.Dispatch(context.Background(), s, "/provider claude")
	if s.Params.Provider != "mistral" {
		t.Errorf("unknown provider must not apply, got %q", s.Params.Provider)
	}
	if !strings.Contains(out, "one of") {
		t.Errorf("expected usage message, got %q", out)
	}
}

func TestMemoryTrimsHistory(t *testing.T) {
	d, st := newTestDispatcher()
	s := activeSession(st)
	for i := 0; i < 10; i++ {
		s.History = append(s.History, session.Message{Role: session.RoleUser, Content: "x"})
	}
	d.Dispatch(context.Background(), s, "/memory 2")
	if len(s.History) > 4 {
		t.Errorf("history should be trimmed to the new cap, got %d", len(s.History))
	}
}

func TestMaxTokensRange(t *testing.T) {
	d, st := newTestDispatcher()
	s := activeSession(st)
	d.Dispatch(context.Background(), s, "/maxtokens 50")
	if s.Params.MaxTokens == 50 {
		t.Error("max tokens below 100 must be rejected")
	}
	d.Dispatch(context.Background(), s, "/maxtokens 2000")
	if s.Params.MaxTokens != 2000 {
		t.Errorf("expected max tokens 2000, got %d", s.Params.MaxTokens)
	}
}

func TestTTSToggle(t *testing.T) {
	d, st := newTestDispatcher()
	s := activeSession(st)
	d.Dispatch(context.Background(), s, "/tts on")
	if !s.Params.SpeechEnabled {
		t.Error("expected tts enabled")
	}
	d.Dispatch(context.Background(), s, "/tts off")
	if s.Params.SpeechEnabled {
		t.Error("expected tts disabled")
	}
	out := d.Dispatch(context.Background(), s, "/tts maybe")
	if !strings.Contains(out, "one of") {
		t.Errorf("expected usage message, got %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	d, st := newTestDispatcher()
	out := d.Dispatch(context.Background(), activeSession(st), "/frobnicate now")
	if !strings.Contains(out, "Unknown command") {
		t.Errorf("expected unknown-command message, got %q", out)
	}
}

func TestSaveWithoutBackingFails(t *testing.T) {
	d, st := newTestDispatcher()
	out := d.Dispatch(context.Background(), activeSession(st), "/save")
	if !strings.Contains(out, "Could not save") {
		t.Errorf("save failure must be reported to the user, got %q", out)
	}
}

func TestSettingsAndStatus(t *testing.T) {
	d, st := newTestDispatcher()
	s := activeSession(st)
	settings := d.Dispatch(context.Background(), s, "/settings")
	if !strings.Contains(settings, "provider: openai") {
		t.Errorf("settings should show the provider, got %q", settings)
	}
	status := d.Dispatch(context.Background(), s, "/status")
	if !strings.Contains(status, "state: active") {
		t.Errorf("status should show the state, got %q", status)
	}
}

package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/convohub/convo-gateway/internal/command"
	"github.com/convohub/convo-gateway/internal/ratelimit"
	"github.com/convohub/convo-gateway/internal/session"
	"github.com/convohub/convo-gateway/internal/store"
)

// fakeCompleter scripts the orchestrator.
type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, sess *session.Session, userText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type testEnv struct {
	router    *Router
	store     *store.Store
	completer *fakeCompleter
	limiter   *ratelimit.Limiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.New(nil, store.Options{
		Timeout:     time.Hour,
		RejectGrace: 5 * time.Second,
		Defaults: session.Params{
			Provider:    "openai",
			Temperature: 1.0,
			MemorySize:  3,
			MaxTokens:   1000,
			VoiceID:     "nova",
		},
	}, slog.Default())
	completer := &fakeCompleter{reply: "assistant says hi"}
	limiter := ratelimit.New(100, time.Minute)
	dispatcher := command.NewDispatcher(st, []string{"openai", "mistral"}, []string{"nova"})
	r := New(st, limiter, dispatcher, completer, 4000, slog.Default())
	return &testEnv{router: r, store: st, completer: completer, limiter: limiter}
}

// activate walks a session through consent.
func (e *testEnv) activate(t *testing.T, id string) {
	t.Helper()
	reply := e.router.Handle(context.Background(), id, "yes")
	if reply.Text != ConsentGiven {
		t.Fatalf("consent not granted: %q", reply.Text)
	}
}

func TestConsentPromptOnFirstContact(t *testing.T) {
	env := newTestEnv(t)
	reply := env.router.Handle(context.Background(), "web:abc", "hello")
	if reply.Text != ConsentPrompt {
		t.Errorf("expected consent prompt, got %q", reply.Text)
	}
	s, ok := env.store.Get("web:abc")
	if !ok || s.State != session.StateConsent {
		t.Errorf("session should exist in consent state")
	}
}

func TestConsentAffirmative(t *testing.T) {
	env := newTestEnv(t)
	env.router.Handle(context.Background(), "web:abc", "hello")
	reply := env.router.Handle(context.Background(), "web:abc", "yes")
	if reply.Text != ConsentGiven {
		t.Errorf("expected confirmation, got %q", reply.Text)
	}
	s, _ := env.store.Get("web:abc")
	if s.State != session.StateActive {
		t.Errorf("expected active state, got %s", s.State)
	}
}

func TestConsentNegativeTerminates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reply := env.router.Handle(ctx, "web:abc", "I disagree")
	if reply.Text != Terminated {
		t.Errorf("expected termination notice, got %q", reply.Text)
	}
	s, _ := env.store.Get("web:abc")
	if s.State != session.StateRejected {
		t.Fatalf("expected rejected state, got %s", s.State)
	}

	// A terminal session answers every further input the same way.
	for _, input := range []string{"yes", "please", "/help"} {
		reply := env.router.Handle(ctx, "web:abc", input)
		if reply.Text != Terminated {
			t.Errorf("input %q after rejection: expected termination notice, got %q", input, reply.Text)
		}
	}
	if s.State != session.StateRejected {
		t.Errorf("rejected is terminal, got %s", s.State)
	}

	// After the grace delay the sweep deletes it.
	env.store.SweepExpired(ctx, time.Now().UTC().Add(10*time.Second))
	if _, ok := env.store.Get("web:abc"); ok {
		t.Error("rejected session should be gone after the grace delay")
	}
}

func TestDisagreeBeatsAgreeSubstring(t *testing.T) {
	if classifyConsent("I disagree") != consentNo {
		t.Error(`"I disagree" must classify as negative`)
	}
	if classifyConsent("YES please") != consentYes {
		t.Error(`"YES please" must classify as affirmative`)
	}
	if classifyConsent("tell me more") != consentUnknown {
		t.Error("unrelated input must not change state")
	}
}

func TestActiveCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.activate(t, "web:abc")

	reply := env.router.Handle(ctx, "web:abc", "how are you?")
	if reply.Text != "assistant says hi" {
		t.Errorf("expected assistant reply, got %q", reply.Text)
	}
	s, _ := env.store.Get("web:abc")
	if len(s.History) != 2 {
		t.Fatalf("expected both turns appended, got %d", len(s.History))
	}
	if s.History[0].Role != session.RoleUser || s.History[1].Role != session.RoleAssistant {
		t.Errorf("history order wrong: %+v", s.History)
	}
}

func TestProviderFailureLeavesHistoryUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.activate(t, "web:abc")
	env.completer.err = errors.New("provider exploded")

	reply := env.router.Handle(ctx, "web:abc", "hello?")
	if reply.Text != ApologyMsg {
		t.Errorf("expected apology, got %q", reply.Text)
	}
	s, _ := env.store.Get("web:abc")
	if len(s.History) != 0 {
		t.Errorf("history must not mutate on provider failure, got %d entries", len(s.History))
	}
}

func TestCommandRouting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.activate(t, "web:abc")

	reply := env.router.Handle(ctx, "web:abc", "/temperature 0.2")
	if !strings.Contains(reply.Text, "0.2") {
		t.Errorf("expected temperature confirmation, got %q", reply.Text)
	}
	s, _ := env.store.Get("web:abc")
	if s.Params.Temperature != 0.2 {
		t.Errorf("expected temperature applied, got %g", s.Params.Temperature)
	}
	if env.completer.calls != 0 {
		t.Error("commands must not reach the provider")
	}
}

func TestHistoryCapAfterEveryTurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.activate(t, "web:abc")

	for i := 0; i < 10; i++ {
		env.router.Handle(ctx, "web:abc", "another message")
		s, _ := env.store.Get("web:abc")
		if len(s.History) > 2*s.Params.MemorySize {
			t.Fatalf("history %d exceeds cap %d", len(s.History), 2*s.Params.MemorySize)
		}
	}
}

func TestRateLimitShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	limiter := ratelimit.New(2, time.Minute)
	env.router.limiter = limiter

	env.router.Handle(ctx, "web:abc", "hello")
	env.router.Handle(ctx, "web:abc", "yes")
	reply := env.router.Handle(ctx, "web:abc", "third")
	if reply.Text != RateLimitMsg {
		t.Errorf("expected rate limit message, got %q", reply.Text)
	}
	// Other keys are unaffected.
	reply = env.router.Handle(ctx, "web:other", "hello")
	if reply.Text == RateLimitMsg {
		t.Error("rate limit must be per key")
	}
}

func TestEmptyInputRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.activate(t, "web:abc")

	reply := env.router.Handle(ctx, "web:abc", "   ")
	if !strings.Contains(reply.Text, "Invalid input") {
		t.Errorf("expected validation message, got %q", reply.Text)
	}
}

func TestSpeechRequestWhenEnabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.activate(t, "web:abc")

	reply := env.router.Handle(ctx, "web:abc", "hi")
	if reply.Speech != nil {
		t.Error("speech should be off by default")
	}

	env.router.Handle(ctx, "web:abc", "/tts on")
	reply = env.router.Handle(ctx, "web:abc", "hi again")
	if reply.Speech == nil {
		t.Fatal("expected a speech request with tts on")
	}
	if reply.Speech.Text != "assistant says hi" || reply.Speech.VoiceID != "nova" {
		t.Errorf("speech request wrong: %+v", reply.Speech)
	}
}

func TestSameSessionSerialized(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.activate(t, "web:abc")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.router.Handle(ctx, "web:abc", "concurrent message")
		}()
	}
	wg.Wait()

	s, _ := env.store.Get("web:abc")
	if len(s.History) > 2*s.Params.MemorySize {
		t.Errorf("cap violated under concurrency: %d", len(s.History))
	}
	if len(s.History)%2 != 0 {
		t.Errorf("interleaved turns detected: %d entries", len(s.History))
	}
}

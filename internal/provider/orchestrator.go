package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/convohub/convo-gateway/internal/metrics"
	"github.com/convohub/convo-gateway/internal/session"
)

// DefaultCompletionTimeout bounds one generation call.
const DefaultCompletionTimeout = 30 * time.Second

// Orchestrator resolves a session's configured provider, calls it, and
// falls back to the secondary provider at most once on failure.
type Orchestrator struct {
	generators map[string]Generator
	primary    string
	secondary  string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given generators.
// secondary may be empty, disabling fallback.
func NewOrchestrator(generators []Generator, primary, secondary string, logger *slog.Logger) *Orchestrator {
	byName := make(map[string]Generator, len(generators))
	for _, g := range generators {
		byName[g.Name()] = g
	}
	return &Orchestrator{
		generators: byName,
		primary:    primary,
		secondary:  secondary,
		timeout:    DefaultCompletionTimeout,
		logger:     logger,
	}
}

// Names returns the known generator names, for command validation.
func (o *Orchestrator) Names() []string {
	names := make([]string, 0, len(o.generators))
	for name := range o.generators {
		names = append(names, name)
	}
	return names
}

// HasCredentialed reports whether at least one generator can be used.
func (o *Orchestrator) HasCredentialed() bool {
	for _, g := range o.generators {
		if g.Available() {
			return true
		}
	}
	return false
}

// Complete turns the session's history plus one new user message into an
// assistant response. The caller appends both turns to the history and
// persists; Complete itself never mutates the session.
func (o *Orchestrator) Complete(ctx context.Context, sess *session.Session, userText string) (string, error) {
	messages := buildContext(sess, userText)
	name := sess.Params.Provider

	text, err := o.invoke(ctx, name, sess.Params.Model, messages, sess.Params)
	if err == nil {
		return text, nil
	}

	// At most one hop, primary to secondary only. The retry targets a
	// fixed name and does not re-enter this branch.
	if name == o.primary && o.secondary != "" && o.secondary != name {
		if sec, ok := o.generators[o.secondary]; ok && sec.Available() {
			o.logger.Warn("primary provider failed, trying secondary",
				"primary", name, "secondary", o.secondary, "error", err)
			metrics.ProviderFallbacks.Inc()
			// The secondary substitutes its own default model.
			text, secErr := o.invoke(ctx, o.secondary, "", messages, sess.Params)
			if secErr == nil {
				return text, nil
			}
			// Both failed: surface the secondary's error, it reflects
			// the last attempt actually made.
			return "", secErr
		}
	}
	return "", err
}

// invoke runs one bounded generation call against the named provider.
func (o *Orchestrator) invoke(ctx context.Context, name, model string, messages []Message, params session.Params) (string, error) {
	gen, ok := o.generators[name]
	if !ok {
		return "", &Error{Provider: name, Err: ErrUnknownProvider}
	}
	if !gen.Available() {
		return "", &Error{Provider: name, Err: ErrNoCredential}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	text, err := gen.Complete(callCtx, &CompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	metrics.ProviderLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", &Error{Provider: name, Err: err}
	}
	return text, nil
}

// buildContext assembles system prompt + capped history + the new user
// message into the provider wire format.
func buildContext(sess *session.Session, userText string) []Message {
	messages := make([]Message, 0, len(sess.History)+2)
	if sess.Params.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: sess.Params.SystemPrompt})
	}
	history := sess.History
	if max := 2 * sess.Params.MemorySize; max > 0 && len(history) > max {
		history = history[len(history)-max:]
	}
	for _, m := range history {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, Message{Role: RoleUser, Content: userText})
	return messages
}

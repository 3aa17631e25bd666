// Package router is the top-level entry point for inbound messages. It
// applies rate limiting, drives the per-session consent state machine,
// and routes active-session input to the command dispatcher or the
// provider orchestrator. Operations on one session id are serialized.
package router

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/convohub/convo-gateway/internal/command"
	"github.com/convohub/convo-gateway/internal/metrics"
	"github.com/convohub/convo-gateway/internal/session"
	"github.com/convohub/convo-gateway/internal/store"
	"github.com/convohub/convo-gateway/internal/validate"
)

// User-facing texts returned by the state machine.
const (
	ConsentPrompt = "Before we start: this assistant sends your messages to a third-party AI service. Reply \"yes\" to agree, or \"no\" to decline."
	ConsentGiven  = "Thanks, you're all set. How can I help?"
	Terminated    = "Understood. This session has been terminated and will be deleted."
	RateLimitMsg  = "You're sending messages too quickly. Please wait a moment and try again."
	ApologyMsg    = "Sorry, I couldn't get a response right now. Please try again in a moment."
)

// Limiter is the admission control applied before any session load.
type Limiter interface {
	Allow(key string) bool
}

// Completer produces an assistant response for an active session.
type Completer interface {
	Complete(ctx context.Context, sess *session.Session, userText string) (string, error)
}

// Dispatcher executes /command lines.
type Dispatcher interface {
	Dispatch(ctx context.Context, sess *session.Session, line string) string
}

// Reply is the outcome of handling one message. Speech is set when the
// session asked for synthesized audio alongside the text.
type Reply struct {
	Text   string
	Speech *SpeechRequest
}

// SpeechRequest asks the transport layer to synthesize audio.
type SpeechRequest struct {
	Text    string
	VoiceID string
}

// Router handles inbound messages.
type Router struct {
	store        *store.Store
	limiter      Limiter
	dispatcher   Dispatcher
	orchestrator Completer
	maxInputLen  int
	logger       *slog.Logger

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New creates a router.
func New(st *store.Store, limiter Limiter, dispatcher Dispatcher, orchestrator Completer, maxInputLen int, logger *slog.Logger) *Router {
	if maxInputLen <= 0 {
		maxInputLen = 4000
	}
	return &Router{
		store:        st,
		limiter:      limiter,
		dispatcher:   dispatcher,
		orchestrator: orchestrator,
		maxInputLen:  maxInputLen,
		logger:       logger,
		locks:        make(map[string]*sync.Mutex),
	}
}

// Handle processes one raw message for a session and returns the reply.
// Errors never escape; every failure mode maps to user-facing text.
func (r *Router) Handle(ctx context.Context, sessionID, input string) Reply {
	if !r.limiter.Allow(sessionID) {
		metrics.RateLimited.Inc()
		return Reply{Text: RateLimitMsg}
	}

	unlock := r.lock(sessionID)
	defer unlock()

	sess := r.store.LoadOrCreate(ctx, sessionID)
	reply, outcome := r.advance(ctx, sess, input)
	metrics.MessagesHandled.WithLabelValues(string(sess.Platform), outcome).Inc()
	return reply
}

// lock serializes handling per session id.
func (r *Router) lock(id string) func() {
	r.lockMu.Lock()
	m, ok := r.locks[id]
	if !ok {
		m = &sync.Mutex{}
		r.locks[id] = m
	}
	r.lockMu.Unlock()
	m.Lock()
	return m.Unlock
}

// ReleaseLock drops the per-session lock entry. Called by the sweep for
// sessions that no longer exist.
func (r *Router) ReleaseLock(id string) {
	r.lockMu.Lock()
	delete(r.locks, id)
	r.lockMu.Unlock()
}

// advance is the state transition function: given the current session
// state and one input, it produces the reply and the metric outcome
// label, persisting any mutation.
func (r *Router) advance(ctx context.Context, sess *session.Session, input string) (Reply, string) {
	switch sess.State {
	case session.StateConsent:
		return r.handleConsent(ctx, sess, input)
	case session.StateRejected:
		// Terminal: deletion is already scheduled via the sweep.
		return Reply{Text: Terminated}, "rejected"
	case session.StateActive:
		return r.handleActive(ctx, sess, input)
	default:
		r.logger.Error("session in unknown state", "session_id", sess.ID, "state", sess.State)
		return Reply{Text: ApologyMsg}, "error"
	}
}

func (r *Router) handleConsent(ctx context.Context, sess *session.Session, input string) (Reply, string) {
	switch classifyConsent(input) {
	case consentYes:
		sess.Accept()
		sess.Touch()
		r.store.Save(ctx, sess)
		return Reply{Text: ConsentGiven}, "consented"
	case consentNo:
		sess.Reject()
		r.store.Save(ctx, sess)
		return Reply{Text: Terminated}, "rejected"
	default:
		sess.Touch()
		r.store.Save(ctx, sess)
		return Reply{Text: ConsentPrompt}, "consent_prompt"
	}
}

func (r *Router) handleActive(ctx context.Context, sess *session.Session, input string) (Reply, string) {
	if err := validate.String("message", strings.TrimSpace(input), 1, r.maxInputLen, true); err != nil {
		return Reply{Text: "Invalid input: " + err.Error()}, "invalid"
	}

	if strings.HasPrefix(input, command.Prefix) {
		text := r.dispatcher.Dispatch(ctx, sess, input)
		sess.Touch()
		r.store.Save(ctx, sess)
		return r.withSpeech(sess, text), "command"
	}

	sess.TrimHistory()
	assistantText, err := r.orchestrator.Complete(ctx, sess, input)
	if err != nil {
		r.logger.Warn("completion failed", "session_id", sess.ID, "error", err)
		return Reply{Text: ApologyMsg}, "provider_error"
	}

	sess.Append(session.RoleUser, input)
	sess.Append(session.RoleAssistant, assistantText)
	sess.Touch()
	r.store.Save(ctx, sess)
	return r.withSpeech(sess, assistantText), "completed"
}

func (r *Router) withSpeech(sess *session.Session, text string) Reply {
	reply := Reply{Text: text}
	if sess.Params.SpeechEnabled {
		reply.Speech = &SpeechRequest{Text: text, VoiceID: sess.Params.VoiceID}
	}
	return reply
}

type consentAnswer int

const (
	consentUnknown consentAnswer = iota
	consentYes
	consentNo
)

var (
	affirmativeTokens = []string{"yes", "agree", "accept", "yep", "sure"}
	negativeTokens    = []string{"no", "disagree", "decline", "reject", "never"}
)

// classifyConsent scans the input for consent tokens, case-insensitively
// on word boundaries. Negative tokens win so that "I disagree" is not
// read as "agree".
func classifyConsent(input string) consentAnswer {
	words := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	})
	for _, w := range words {
		for _, tok := range negativeTokens {
			if w == tok {
				return consentNo
			}
		}
	}
	for _, w := range words {
		for _, tok := range affirmativeTokens {
			if w == tok {
				return consentYes
			}
		}
	}
	return consentUnknown
}

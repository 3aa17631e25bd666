// Package store implements the dual-tier session repository: an
// in-process cache backed by a durable key/value service. The cache is
// authoritative for any session currently in memory; the backing is
// consulted only on cache miss.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/convohub/convo-gateway/internal/metrics"
	"github.com/convohub/convo-gateway/internal/session"
)

// ErrNotFound is returned by a Backing when a key does not exist.
var ErrNotFound = errors.New("key not found")

// Backing is the durable key/value service behind the cache.
type Backing interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Options configure a Store.
type Options struct {
	// Timeout is the idle lifetime of a session; it also becomes the
	// TTL of the durable record.
	Timeout time.Duration
	// RejectGrace is how long a rejected session lingers before the
	// sweep deletes it.
	RejectGrace time.Duration
	// Defaults seed the params of newly created sessions when no saved
	// user defaults exist.
	Defaults session.Params
}

// Store is the session repository.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	backing Backing
	opts    Options
	logger  *slog.Logger
}

// New creates a store. The backing may be nil, in which case the store
// runs memory-only and sessions do not survive a restart.
func New(backing Backing, opts Options, logger *slog.Logger) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Hour
	}
	if opts.RejectGrace <= 0 {
		opts.RejectGrace = 5 * time.Second
	}
	return &Store{
		sessions: make(map[string]*session.Session),
		backing:  backing,
		opts:     opts,
		logger:   logger,
	}
}

func sessionKey(id string) string  { return "session:" + id }
func defaultsKey(id string) string { return "defaults:" + id }

// LoadOrCreate returns the live session for id. On cache miss it tries
// the durable backing; on miss there too it creates a fresh session,
// seeded from saved user defaults when present.
func (s *Store) LoadOrCreate(ctx context.Context, id string) *session.Session {
	s.mu.RLock()
	cached, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the write lock; another request may have won.
	if cached, ok := s.sessions[id]; ok {
		return cached
	}

	if restored := s.restore(ctx, id); restored != nil {
		restored.LastActivityAt = time.Now().UTC()
		s.sessions[id] = restored
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		return restored
	}

	params := s.opts.Defaults
	if saved, ok := s.loadDefaults(ctx, id); ok {
		params = saved
	}
	created := session.New(id, params)
	s.sessions[id] = created
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return created
}

// restore reads a session from the durable backing. Failures are logged
// and treated as a miss.
func (s *Store) restore(ctx context.Context, id string) *session.Session {
	if s.backing == nil {
		return nil
	}
	data, err := s.backing.Get(ctx, sessionKey(id))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("session restore failed", "session_id", id, "error", err)
		}
		return nil
	}
	restored, err := session.Decode(data)
	if err != nil {
		s.logger.Warn("stored session is corrupt", "session_id", id, "error", err)
		return nil
	}
	return restored
}

// Save updates the cache and writes through to the durable backing with
// a TTL equal to the session timeout. A backing failure is logged and
// does not fail the in-memory save.
func (s *Store) Save(ctx context.Context, sess *session.Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	if s.backing == nil {
		return
	}
	data, err := sess.Encode()
	if err != nil {
		s.logger.Error("session encode failed", "session_id", sess.ID, "error", err)
		return
	}
	if err := s.backing.Set(ctx, sessionKey(sess.ID), data, s.opts.Timeout); err != nil {
		metrics.PersistenceFailures.Inc()
		s.logger.Warn("durable save failed, session remains in memory only",
			"session_id", sess.ID, "error", err)
	}
}

// Delete removes the session from both tiers.
func (s *Store) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	if s.backing == nil {
		return
	}
	if err := s.backing.Delete(ctx, sessionKey(id)); err != nil {
		metrics.PersistenceFailures.Inc()
		s.logger.Warn("durable delete failed", "session_id", id, "error", err)
	}
}

// SaveDefaults persists a user's params independently of the session
// lifecycle, with no TTL. Unlike Save, failure is returned to the
// caller: saving defaults has no degraded mode.
func (s *Store) SaveDefaults(ctx context.Context, id string, params session.Params) error {
	if s.backing == nil {
		return fmt.Errorf("no durable backing configured")
	}
	data, err := encodeParams(params)
	if err != nil {
		return fmt.Errorf("encode defaults: %w", err)
	}
	if err := s.backing.Set(ctx, defaultsKey(id), data, 0); err != nil {
		metrics.PersistenceFailures.Inc()
		return fmt.Errorf("save defaults: %w", err)
	}
	return nil
}

func (s *Store) loadDefaults(ctx context.Context, id string) (session.Params, bool) {
	if s.backing == nil {
		return session.Params{}, false
	}
	data, err := s.backing.Get(ctx, defaultsKey(id))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("loading defaults failed", "session_id", id, "error", err)
		}
		return session.Params{}, false
	}
	params, err := decodeParams(data)
	if err != nil {
		s.logger.Warn("stored defaults are corrupt", "session_id", id, "error", err)
		return session.Params{}, false
	}
	return params, true
}

// SweepExpired deletes cached sessions past their idle timeout, and
// rejected sessions past the grace delay. Returns the removed ids.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) []string {
	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.Expired(now, s.opts.Timeout, s.opts.RejectGrace) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.sessions, id)
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	for _, id := range expired {
		if s.backing == nil {
			continue
		}
		if err := s.backing.Delete(ctx, sessionKey(id)); err != nil {
			s.logger.Warn("durable delete failed during sweep", "session_id", id, "error", err)
		}
	}
	if len(expired) > 0 {
		s.logger.Info("swept expired sessions", "count", len(expired))
	}
	return expired
}

// Len returns the number of cached sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Get returns the cached session without creating one. Used by tests and
// the status endpoint.
func (s *Store) Get(id string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/logging"
	"github.com/aretw0/waypoint/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock is held.
const DefaultLockTTL = 30 * time.Second

// ErrSessionNotFound is returned for operations on a session that was never opened.
var ErrSessionNotFound = errors.New("session not found")

// Session is one learner's tour: the engine and the page it runs against.
type Session struct {
	ID        string
	Engine    *waypoint.Engine
	Document  ports.Document
	Navigator ports.Navigator

	// OnClose releases page resources (a browser tab, a mirror) after the engine is closed.
	OnClose func() error
}

// Factory builds the session for id. opts must be passed on to waypoint.New.
type Factory func(ctx context.Context, id string, opts ...waypoint.Option) (*Session, error)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the engines of all open sessions. Every operation on a
// session runs under that session's lock, so concurrent requests for the same
// learner are serialized while different learners proceed in parallel.
type Manager struct {
	factory Factory

	mu       sync.Mutex            // Global lock for the maps
	locks    map[string]*lockEntry // Reference-counted per-session locks
	sessions map[string]*Session

	locker     ports.DistributedLocker // Optional distributed locker
	lockTTL    time.Duration
	engineOpts []waypoint.Option
	logger     *slog.Logger
	onOpen     func(*Session)
	onClose    func(*Session)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithEngineOptions adds options to every engine the factory builds.
func WithEngineOptions(opts ...waypoint.Option) Option {
	return func(m *Manager) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// WithObserver registers callbacks run after a session opens and after it closes.
func WithObserver(onOpen, onClose func(*Session)) Option {
	return func(m *Manager) {
		m.onOpen = onOpen
		m.onClose = onClose
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager that opens sessions with factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		factory:  factory,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*Session),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock runs fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Open returns the session for id, creating it on first use.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	var s *Session
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		if existing, ok := m.lookup(id); ok {
			s = existing
			return nil
		}
		created, err := m.factory(ctx, id, m.engineOpts...)
		if err != nil {
			return fmt.Errorf("failed to open session %s: %w", id, err)
		}
		created.ID = id
		m.mu.Lock()
		m.sessions[id] = created
		m.mu.Unlock()
		m.logger.Debug("session opened", "session_id", id)
		if m.onOpen != nil {
			m.onOpen(created)
		}
		s = created
		return nil
	})
	return s, err
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Do runs fn on the engine of an open session under the session lock.
func (m *Manager) Do(ctx context.Context, id string, fn func(context.Context, *Session) error) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		s, ok := m.lookup(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return fn(ctx, s)
	})
}

// Close stops the session's tour and forgets it. Closing an unknown session is a no-op.
func (m *Manager) Close(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		m.mu.Lock()
		s, ok := m.sessions[id]
		delete(m.sessions, id)
		m.mu.Unlock()
		if !ok {
			return nil
		}
		m.logger.Debug("session closed", "session_id", id)
		err := closeSession(s)
		if m.onClose != nil {
			m.onClose(s)
		}
		return err
	})
}

// List returns the IDs of open sessions, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown closes every open session.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, id := range m.List() {
		if err := m.Close(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func closeSession(s *Session) error {
	var errs []error
	if s.Engine != nil {
		errs = append(errs, s.Engine.Close())
	}
	if s.OnClose != nil {
		errs = append(errs, s.OnClose())
	}
	return errors.Join(errs...)
}

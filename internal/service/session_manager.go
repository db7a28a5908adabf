package service

import (
	"context"
	"sync"
	"time"

	"github.com/devrev/catalogd/internal/client"
	"github.com/devrev/catalogd/internal/errors"
	"github.com/devrev/catalogd/internal/metrics"
	"github.com/devrev/catalogd/internal/store"
	"github.com/devrev/catalogd/internal/util/workerpool"
	"go.uber.org/zap"
)

// SessionManagerConfig holds session registry configuration
type SessionManagerConfig struct {
	Session     SessionConfig
	IdleTTL     time.Duration
	MaxSessions int
	// PrimeTimeout bounds the root option fetch done on Create; zero skips it
	PrimeTimeout time.Duration
}

// SessionManager owns every live session and the resources they share
type SessionManager struct {
	config   *SessionManagerConfig
	source   client.CatalogSource
	pool     *workerpool.Pool
	fallback *store.FallbackTable
	cache    *store.OptionCache
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionManager creates a new session manager
func NewSessionManager(
	cfg *SessionManagerConfig,
	source client.CatalogSource,
	pool *workerpool.Pool,
	fallback *store.FallbackTable,
	cache *store.OptionCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SessionManager {
	if m == nil {
		m = metrics.NewNop()
	}
	return &SessionManager{
		config:   cfg,
		source:   source,
		pool:     pool,
		fallback: fallback,
		cache:    cache,
		metrics:  m,
		logger:   logger,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a new session and primes its root option lists
func (m *SessionManager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		m.mu.Unlock()
		return nil, errors.NewCatalogError(errors.ErrCodeRateLimited, "too many active sessions", nil).
			WithDetail("max_sessions", m.config.MaxSessions)
	}

	session := NewSession(&m.config.Session, m.source, m.pool, m.fallback, m.cache, m.metrics, m.logger)
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.metrics.ActiveSessions.Inc()
	m.logger.Info("Session created", zap.String("session_id", session.ID()))

	if m.config.PrimeTimeout > 0 {
		primeCtx, cancel := context.WithTimeout(ctx, m.config.PrimeTimeout)
		session.Prime(primeCtx)
		cancel()
	}
	return session, nil
}

// Get returns a live session by id
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, errors.NotFound("session", id)
	}
	return session, nil
}

// Close ends a session and removes it from the registry
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return errors.NotFound("session", id)
	}

	session.Close()
	m.metrics.ActiveSessions.Dec()
	m.logger.Info("Session closed", zap.String("session_id", id))
	return nil
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sessions returns every live session
func (m *SessionManager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Sweep closes sessions idle for longer than IdleTTL
func (m *SessionManager) Sweep() int {
	if m.config.IdleTTL <= 0 {
		return 0
	}

	cutoff := m.now().Add(-m.config.IdleTTL)
	var idle []string

	m.mu.RLock()
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if m.Close(id) == nil {
			closed++
		}
	}
	if closed > 0 {
		m.logger.Info("Swept idle sessions", zap.Int("closed", closed))
	}
	return closed
}

// RunCleanup sweeps idle sessions periodically until ctx is done
func (m *SessionManager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// CloseAll ends every session
func (m *SessionManager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id)
	}
}

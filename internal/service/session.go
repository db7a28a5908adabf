package service

import (
	"context"
	"sync"
	"time"

	"github.com/devrev/catalogd/internal/client"
	"github.com/devrev/catalogd/internal/errors"
	"github.com/devrev/catalogd/internal/metrics"
	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/store"
	"github.com/devrev/catalogd/internal/util/workerpool"
	"github.com/devrev/catalogd/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const settlePollInterval = 10 * time.Millisecond

// SessionConfig holds per-session configuration
type SessionConfig struct {
	DebounceWindow time.Duration
	EmptyResultTTL time.Duration
	FetchTimeout   time.Duration
	MaxEntries     int
	PageSize       int
	// SubscriberBuffer is the channel capacity handed to each subscriber
	SubscriberBuffer int
}

// Snapshot is an immutable view of a session published after every change
type Snapshot struct {
	SessionID     string                                    `json:"session_id"`
	Revision      uint64                                    `json:"revision"`
	FilterVersion uint64                                    `json:"filter_version"`
	Filters       map[model.Dimension]string                `json:"filters"`
	Sort          model.SortSpec                            `json:"sort"`
	Page          model.ResultPage                          `json:"page"`
	Options       map[model.Dimension]model.RenderedOptions `json:"options"`
	Status        model.Status                              `json:"status"`
	Loading       bool                                      `json:"loading"`
}

// Session is the consumer-facing facade over one user's filter state: it
// validates calls, runs them through the cascade resolver and fans the new
// state out to the option fetcher and the sort/paginate engine
type Session struct {
	id         string
	resolver   *CascadeResolver
	classifier StrictModeClassifier
	validator  *validation.Validator
	fetcher    *OptionFetcher
	engine     *SortPaginateEngine
	metrics    *metrics.Metrics
	logger     *zap.Logger

	mu         sync.RWMutex
	state      *model.FilterState
	lastActive time.Time
	closed     bool

	pubMu       sync.Mutex
	revision    uint64
	subscribers map[int]chan Snapshot
	nextSubID   int
	bufferSize  int
}

// NewSession creates a session at the empty filter state and starts the
// initial option refreshes and search
func NewSession(
	cfg *SessionConfig,
	source client.CatalogSource,
	pool *workerpool.Pool,
	fallback *store.FallbackTable,
	cache *store.OptionCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Session {
	if m == nil {
		m = metrics.NewNop()
	}
	id := uuid.New().String()
	logger = logger.With(zap.String("session_id", id))

	s := &Session{
		id:          id,
		resolver:    NewCascadeResolver(logger),
		validator:   validation.NewValidator(),
		metrics:     m,
		logger:      logger,
		state:       model.NewFilterState(),
		lastActive:  time.Now(),
		subscribers: make(map[int]chan Snapshot),
		bufferSize:  cfg.SubscriberBuffer,
	}
	if s.bufferSize <= 0 {
		s.bufferSize = 16
	}

	s.fetcher = NewOptionFetcher(&OptionFetcherConfig{
		DebounceWindow: cfg.DebounceWindow,
		EmptyResultTTL: cfg.EmptyResultTTL,
		FetchTimeout:   cfg.FetchTimeout,
	}, source, pool, fallback, cache, m, logger)
	s.engine = NewSortPaginateEngine(&EngineConfig{
		MaxEntries:    cfg.MaxEntries,
		PageSize:      cfg.PageSize,
		SearchTimeout: cfg.FetchTimeout,
	}, source, pool, m, logger)

	s.fetcher.OnPublish(func(model.Dimension) { s.publish() })
	s.engine.OnPublish(s.publish)

	s.fetcher.Observe(s.state)
	s.engine.Refresh(s.state)
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Prime fetches the root option lists without waiting for the debounce window
func (s *Session) Prime(ctx context.Context) {
	if err := s.fetcher.Prime(ctx); err != nil {
		s.logger.Warn("Priming root options failed", zap.Error(err))
	}
}

// SetFilter changes one dimension. Any unsets it. Dependent dimensions are
// reset in the same transition. Only misuse is reported as an error; fetch
// outcomes show up in Status.
func (s *Session) SetFilter(d model.Dimension, value model.Value) error {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.validator.ValidateFilter(s.state, d, value); err != nil {
		s.mu.Unlock()
		s.logger.Debug("Rejected filter change",
			zap.String("dimension", string(d)),
			zap.Error(err))
		return err
	}

	next := s.resolver.Apply(s.state, d, value)
	s.state = next
	s.lastActive = time.Now()
	s.fetcher.Observe(next)
	s.engine.Refresh(next)
	s.mu.Unlock()

	s.metrics.FilterChangesTotal.WithLabelValues(string(d)).Inc()
	s.publish()
	return nil
}

// SetSort reorders the held dataset and returns to the first page
func (s *Session) SetSort(spec model.SortSpec) error {
	if err := s.validator.ValidateSort(spec); err != nil {
		return err
	}
	if err := s.touch(); err != nil {
		return err
	}

	s.engine.SetSort(spec)
	s.publish()
	return nil
}

// SetPage selects the visible page. Pages past the end are empty.
func (s *Session) SetPage(index int) error {
	if err := s.validator.ValidatePage(index); err != nil {
		return err
	}
	if err := s.touch(); err != nil {
		return err
	}

	s.engine.SetPage(index)
	s.publish()
	return nil
}

// VisiblePage returns the selected page of the globally sorted dataset
func (s *Session) VisiblePage() model.ResultPage {
	return s.engine.VisiblePage()
}

// OptionSet returns the rendered option list of d
func (s *Session) OptionSet(d model.Dimension) (model.RenderedOptions, error) {
	if !d.Valid() {
		return model.RenderedOptions{}, errors.UnknownDimension(string(d))
	}
	if !d.HasOptions() {
		return model.RenderedOptions{}, errors.Validation(string(d) + " has no option list").
			WithDetail("dimension", string(d))
	}

	state := s.State()
	return s.classifier.Render(state, d, s.fetcher.OptionSet(d), s.fetcher.Degraded(d)), nil
}

// StrictFlag reports whether d holds a concrete value
func (s *Session) StrictFlag(d model.Dimension) bool {
	return s.classifier.IsStrict(s.State(), d)
}

// Status aggregates the fetcher and engine flags: a failed search is an
// error, a failing option list is degraded
func (s *Session) Status() model.Status {
	status := model.StatusOK
	if len(s.fetcher.DegradedDimensions()) > 0 {
		status = status.Worse(model.StatusDegraded)
	}
	if s.engine.Failed() {
		status = status.Worse(model.StatusError)
	}
	return status
}

// State returns the current filter state
func (s *Session) State() *model.FilterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastActive returns the time of the last mutating call
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Busy reports whether debounced refreshes or fetches are outstanding
func (s *Session) Busy() bool {
	return s.fetcher.Pending() || s.engine.Loading()
}

// Settle blocks until no refresh or search is outstanding, or ctx is done
func (s *Session) Settle(ctx context.Context) error {
	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()

	for s.Busy() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Snapshot builds the current view of the session
func (s *Session) Snapshot() Snapshot {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	return s.buildLocked(s.revision)
}

// Subscribe returns a channel receiving every published snapshot and a
// function that ends the subscription. A subscriber that falls behind
// loses its oldest pending snapshots.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	ch := make(chan Snapshot, s.bufferSize)
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.pubMu.Lock()
			defer s.pubMu.Unlock()
			if c, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(c)
			}
		})
	}
}

// Close stops all background work and ends every subscription
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.fetcher.Close()
	s.engine.Close()

	s.pubMu.Lock()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	s.pubMu.Unlock()

	s.logger.Debug("Session closed")
}

func (s *Session) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	s.lastActive = time.Now()
	return nil
}

func (s *Session) checkOpenLocked() error {
	if s.closed {
		return errors.NotFound("session", s.id)
	}
	return nil
}

// publish sends a fresh snapshot to every subscriber
func (s *Session) publish() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.revision++
	snap := s.buildLocked(s.revision)
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Session) buildLocked(revision uint64) Snapshot {
	state := s.State()

	filters := make(map[model.Dimension]string, state.Len())
	for d, v := range state.Values() {
		filters[d] = v.String()
	}

	options := make(map[model.Dimension]model.RenderedOptions)
	for _, d := range model.AllDimensions {
		if d.HasOptions() {
			options[d] = s.classifier.Render(state, d, s.fetcher.OptionSet(d), s.fetcher.Degraded(d))
		}
	}

	return Snapshot{
		SessionID:     s.id,
		Revision:      revision,
		FilterVersion: state.Version(),
		Filters:       filters,
		Sort:          s.engine.SortSpec(),
		Page:          s.engine.VisiblePage(),
		Options:       options,
		Status:        s.Status(),
		Loading:       s.Busy(),
	}
}

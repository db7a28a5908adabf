package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devrev/catalogd/internal/client"
	"github.com/devrev/catalogd/internal/errors"
	"github.com/devrev/catalogd/internal/metrics"
	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/util/workerpool"
	"go.uber.org/zap"
)

const (
	DefaultMaxEntries = 1000
	DefaultPageSize   = 50
)

// EngineConfig holds sort/paginate engine configuration
type EngineConfig struct {
	MaxEntries    int
	PageSize      int
	SearchTimeout time.Duration
}

// SortPaginateEngine holds the full filtered dataset for the latest
// FilterState and serves globally sorted pages out of it. Only a new
// FilterState version causes a search; sort and page changes are local.
type SortPaginateEngine struct {
	config  *EngineConfig
	source  client.CatalogSource
	pool    *workerpool.Pool
	metrics *metrics.Metrics
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	onPublish func()

	mu             sync.RWMutex
	requested      bool
	latestVersion  uint64
	datasetVersion uint64
	loading        bool
	ordered        []model.CatalogEntry
	totalCount     int
	failed         bool
	lastErr        error
	sort           model.SortSpec
	pageIndex      int
	closed         bool
}

// NewSortPaginateEngine creates a new engine ordered by model.DefaultSort
func NewSortPaginateEngine(
	cfg *EngineConfig,
	source client.CatalogSource,
	pool *workerpool.Pool,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SortPaginateEngine {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if m == nil {
		m = metrics.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SortPaginateEngine{
		config:  cfg,
		source:  source,
		pool:    pool,
		metrics: m,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		sort:    model.DefaultSort,
	}
}

// OnPublish registers the callback invoked when a search result is applied
func (e *SortPaginateEngine) OnPublish(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPublish = fn
}

// Refresh starts a search for state unless one was already issued for
// its version. Any earlier search still in flight becomes stale, and the
// held dataset is dropped until the new one arrives.
func (e *SortPaginateEngine) Refresh(state *model.FilterState) {
	e.mu.Lock()
	if e.closed || (e.requested && state.Version() == e.latestVersion) {
		e.mu.Unlock()
		return
	}
	e.requested = true
	e.latestVersion = state.Version()
	e.loading = true
	e.ordered = nil
	e.totalCount = 0
	e.pageIndex = 0
	version := e.latestVersion
	e.mu.Unlock()
	e.metrics.DatasetEntries.Set(0)

	err := e.pool.Submit(workerpool.Job{
		Name: fmt.Sprintf("search#%d", version),
		Fn: func(ctx context.Context) error {
			return e.search(ctx, state)
		},
	})
	if err != nil {
		// callers may hold their own locks here, so no publish
		e.complete(version, nil, errors.InternalError("search not scheduled", err), false)
	}
}

func (e *SortPaginateEngine) search(ctx context.Context, state *model.FilterState) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()

	if e.config.SearchTimeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, e.config.SearchTimeout)
		defer timeoutCancel()
	}

	start := time.Now()
	res, err := e.source.Search(ctx, state, e.config.MaxEntries)
	e.metrics.SearchDuration.Observe(time.Since(start).Seconds())

	e.complete(state.Version(), res, err, true)
	return err
}

func (e *SortPaginateEngine) complete(version uint64, res *model.SearchResult, searchErr error, notify bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if version != e.latestVersion {
		latest := e.latestVersion
		e.mu.Unlock()
		e.metrics.StaleResponsesTotal.WithLabelValues("search").Inc()
		e.logger.Debug("Discarding stale search response",
			zap.Uint64("version", version),
			zap.Uint64("latest", latest))
		return
	}

	e.loading = false
	e.datasetVersion = version
	e.pageIndex = 0

	if searchErr != nil {
		e.ordered = nil
		e.totalCount = 0
		e.failed = true
		e.lastErr = searchErr
		e.metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		e.metrics.DatasetEntries.Set(0)
		e.logger.Warn("Search failed, dataset cleared",
			zap.Uint64("version", version),
			zap.Error(searchErr))
		e.publishAndUnlock(notify)
		return
	}

	entries := res.Entries
	if len(entries) > e.config.MaxEntries {
		entries = entries[:e.config.MaxEntries]
	}
	total := res.TotalCount
	if total < len(entries) {
		total = len(entries)
	}
	if total > len(entries) {
		e.metrics.CapExceededTotal.Inc()
		e.logger.Info("Search matches exceed cap",
			zap.Uint64("version", version),
			zap.Error(errors.CapExceeded(total, e.config.MaxEntries)))
	}

	e.ordered = Sort(entries, e.sort)
	e.totalCount = total
	e.failed = false
	e.lastErr = nil
	e.metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
	e.metrics.DatasetEntries.Set(float64(len(entries)))
	e.logger.Debug("Applied search response",
		zap.Uint64("version", version),
		zap.Int("entries", len(entries)),
		zap.Int("total_count", total))
	e.publishAndUnlock(notify)
}

// SetSort reorders the held dataset and resets to the first page
func (e *SortPaginateEngine) SetSort(spec model.SortSpec) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sort = spec
	e.pageIndex = 0
	e.ordered = Sort(e.ordered, spec)
}

// SetPage selects the visible page without touching the dataset
func (e *SortPaginateEngine) SetPage(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pageIndex = index
}

// SortSpec returns the active ordering
func (e *SortPaginateEngine) SortSpec() model.SortSpec {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sort
}

// PageIndex returns the selected page
func (e *SortPaginateEngine) PageIndex() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pageIndex
}

// VisiblePage returns the selected page of the ordered dataset
func (e *SortPaginateEngine) VisiblePage() model.ResultPage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Paginate(e.ordered, e.pageIndex, e.config.PageSize, e.totalCount)
}

// Failed reports whether the latest search failed
func (e *SortPaginateEngine) Failed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.failed
}

// LastError returns the error of the latest search, if it failed
func (e *SortPaginateEngine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// Loading reports whether the search for the latest version is outstanding
func (e *SortPaginateEngine) Loading() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loading
}

// DatasetVersion returns the FilterState version the held dataset belongs to
func (e *SortPaginateEngine) DatasetVersion() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.datasetVersion
}

// Close cancels the outstanding search; late results are dropped
func (e *SortPaginateEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.loading = false
	e.cancel()
}

func (e *SortPaginateEngine) publishAndUnlock(notify bool) {
	fn := e.onPublish
	e.mu.Unlock()
	if notify && fn != nil {
		fn()
	}
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devrev/catalogd/internal/client"
	"github.com/devrev/catalogd/internal/metrics"
	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/store"
	"github.com/devrev/catalogd/internal/util/debounce"
	"github.com/devrev/catalogd/internal/util/workerpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OptionFetcherConfig holds option fetcher configuration
type OptionFetcherConfig struct {
	DebounceWindow time.Duration
	// EmptyResultTTL is how long an empty network list must keep coming back
	// for the same path before it replaces a non-empty fallback. Zero means never.
	EmptyResultTTL time.Duration
	FetchTimeout   time.Duration
}

// OptionFetcher keeps the OptionSet of every option-bearing dimension in
// step with its ancestor path. Each scheduled fetch is stamped with the
// dimension's next sequence number and a result is applied only while that
// number is still the latest issued.
type OptionFetcher struct {
	config   *OptionFetcherConfig
	source   client.CatalogSource
	pool     *workerpool.Pool
	fallback *store.FallbackTable
	cache    *store.OptionCache
	metrics  *metrics.Metrics
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// onPublish is called, outside any lock, after an async result changes
	// a slot
	onPublish func(model.Dimension)

	mu        sync.Mutex
	slots     map[model.Dimension]*optionSlot
	emptySeen map[string]time.Time
	inflight  int
	closed    bool
	now       func() time.Time
}

// optionSlot is the per-dimension record of issued sequences and the
// currently published set
type optionSlot struct {
	dimension   model.Dimension
	determinate bool
	signature   string
	latestSeq   uint64
	set         *model.OptionSet
	degraded    bool
	debouncer   *debounce.Debouncer
}

// NewOptionFetcher creates a fetcher with one slot per option-bearing dimension
func NewOptionFetcher(
	cfg *OptionFetcherConfig,
	source client.CatalogSource,
	pool *workerpool.Pool,
	fallback *store.FallbackTable,
	cache *store.OptionCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *OptionFetcher {
	if fallback == nil {
		fallback = store.NewFallbackTable()
	}
	if cache == nil {
		cache = store.NewOptionCache(0)
	}
	if m == nil {
		m = metrics.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &OptionFetcher{
		config:    cfg,
		source:    source,
		pool:      pool,
		fallback:  fallback,
		cache:     cache,
		metrics:   m,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		slots:     make(map[model.Dimension]*optionSlot),
		emptySeen: make(map[string]time.Time),
		now:       time.Now,
	}

	for _, d := range model.AllDimensions {
		if d.HasOptions() {
			f.slots[d] = &optionSlot{dimension: d, debouncer: debounce.New(cfg.DebounceWindow)}
		}
	}
	return f
}

// OnPublish registers the callback invoked when an async result is applied
func (f *OptionFetcher) OnPublish(fn func(model.Dimension)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onPublish = fn
}

// Observe compares every slot's ancestor path against state and schedules
// a debounced refresh for each one that changed. Slots whose path became
// indeterminate drop their set and invalidate anything in flight.
func (f *OptionFetcher) Observe(state *model.FilterState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	for _, d := range model.AllDimensions {
		slot, ok := f.slots[d]
		if !ok {
			continue
		}

		path, determinate := state.AncestorPath(d)
		if !determinate {
			if slot.determinate || slot.set != nil {
				f.invalidateLocked(slot)
			}
			continue
		}

		signature := path.Signature()
		if slot.determinate && slot.signature == signature {
			continue
		}

		seq := f.issueLocked(slot, signature, path)
		f.logger.Debug("Scheduling option refresh",
			zap.String("dimension", string(d)),
			zap.String("path", signature),
			zap.Uint64("seq", seq))

		d := d
		slot.debouncer.Trigger(func() {
			f.dispatch(d, seq, path)
		})
	}
}

// Prime fetches every root dimension immediately and waits for the results.
// Failures are absorbed into the degraded flag like any other fetch; the
// first one is returned for the caller to log.
func (f *OptionFetcher) Prime(ctx context.Context) error {
	type job struct {
		dimension model.Dimension
		seq       uint64
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	var jobs []job
	for _, d := range model.AllDimensions {
		slot, ok := f.slots[d]
		if !ok || len(d.Ancestors()) > 0 {
			continue
		}
		slot.debouncer.Cancel()
		jobs = append(jobs, job{dimension: d, seq: f.issueLocked(slot, "", nil)})
		f.inflight++
	}
	f.mu.Unlock()

	var g errgroup.Group
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			return f.fetch(ctx, j.dimension, j.seq, nil)
		})
	}
	return g.Wait()
}

// OptionSet returns the published set of d, or nil when none is held
func (f *OptionFetcher) OptionSet(d model.Dimension) *model.OptionSet {
	f.mu.Lock()
	defer f.mu.Unlock()

	if slot, ok := f.slots[d]; ok {
		return slot.set
	}
	return nil
}

// LatestSequence returns the last sequence number issued for d
func (f *OptionFetcher) LatestSequence(d model.Dimension) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if slot, ok := f.slots[d]; ok {
		return slot.latestSeq
	}
	return 0
}

// Degraded reports whether d's last fetch failed
func (f *OptionFetcher) Degraded(d model.Dimension) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	slot, ok := f.slots[d]
	return ok && slot.degraded
}

// DegradedDimensions returns every dimension currently serving stale options
func (f *OptionFetcher) DegradedDimensions() []model.Dimension {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Dimension
	for _, d := range model.AllDimensions {
		if slot, ok := f.slots[d]; ok && slot.degraded {
			out = append(out, d)
		}
	}
	return out
}

// Pending reports whether any refresh is waiting on its debounce window or
// on the network
func (f *OptionFetcher) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inflight > 0 {
		return true
	}
	for _, slot := range f.slots {
		if slot.debouncer.Pending() {
			return true
		}
	}
	return false
}

// Close cancels pending refreshes and in-flight requests. Results that
// arrive afterwards are dropped.
func (f *OptionFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	f.cancel()
	for _, slot := range f.slots {
		slot.debouncer.Cancel()
		if slot.degraded {
			slot.degraded = false
			f.metrics.DegradedDimensions.Dec()
		}
	}
}

// issueLocked stamps a new sequence for slot under signature and publishes
// the best fallback available for it
func (f *OptionFetcher) issueLocked(slot *optionSlot, signature string, path model.AncestorPath) uint64 {
	slot.latestSeq++
	slot.determinate = true
	slot.signature = signature
	slot.set = nil

	options, ok := f.cache.Get(slot.dimension, signature)
	if !ok {
		options, ok = f.fallback.Lookup(slot.dimension, path)
	}
	if ok {
		slot.set = &model.OptionSet{
			Dimension: slot.dimension,
			Signature: signature,
			Sequence:  slot.latestSeq,
			Source:    model.OptionSourceFallback,
			Options:   options,
		}
	}
	return slot.latestSeq
}

// invalidateLocked drops slot's set and bumps its sequence so any response
// still in flight is discarded on arrival
func (f *OptionFetcher) invalidateLocked(slot *optionSlot) {
	slot.debouncer.Cancel()
	slot.latestSeq++
	slot.determinate = false
	slot.signature = ""
	slot.set = nil

	f.logger.Debug("Dropped options for indeterminate path",
		zap.String("dimension", string(slot.dimension)),
		zap.Uint64("seq", slot.latestSeq))
}

// dispatch hands one fetch to the worker pool once its window has elapsed
func (f *OptionFetcher) dispatch(d model.Dimension, seq uint64, path model.AncestorPath) {
	f.mu.Lock()
	slot := f.slots[d]
	if f.closed || seq != slot.latestSeq {
		f.mu.Unlock()
		return
	}
	f.inflight++
	f.mu.Unlock()

	err := f.pool.Submit(workerpool.Job{
		Name: fmt.Sprintf("options:%s#%d", d, seq),
		Fn: func(ctx context.Context) error {
			return f.fetch(ctx, d, seq, path)
		},
	})
	if err != nil {
		f.metrics.OptionFetchesTotal.WithLabelValues(string(d), "rejected").Inc()
		f.complete(d, seq, path.Signature(), nil, err)
	}
}

// fetch calls the source and applies the outcome. The request is cancelled
// when either ctx or the fetcher is done.
func (f *OptionFetcher) fetch(ctx context.Context, d model.Dimension, seq uint64, path model.AncestorPath) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(f.ctx, cancel)
	defer stop()

	if f.config.FetchTimeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, f.config.FetchTimeout)
		defer timeoutCancel()
	}

	start := time.Now()
	options, err := f.source.ListOptions(ctx, d, path)
	f.metrics.OptionFetchDuration.WithLabelValues(string(d)).Observe(time.Since(start).Seconds())

	f.complete(d, seq, path.Signature(), options, err)
	return err
}

// complete applies a fetch outcome if seq is still the latest for d
func (f *OptionFetcher) complete(d model.Dimension, seq uint64, signature string, options []model.Option, fetchErr error) {
	f.mu.Lock()
	f.inflight--
	slot := f.slots[d]

	if f.closed {
		f.mu.Unlock()
		return
	}

	if seq != slot.latestSeq {
		latest := slot.latestSeq
		f.mu.Unlock()
		f.metrics.StaleResponsesTotal.WithLabelValues("options").Inc()
		f.logger.Debug("Discarding stale option response",
			zap.String("dimension", string(d)),
			zap.Uint64("seq", seq),
			zap.Uint64("latest", latest))
		return
	}

	if fetchErr != nil {
		if !slot.degraded {
			slot.degraded = true
			f.metrics.DegradedDimensions.Inc()
		}
		f.metrics.OptionFetchesTotal.WithLabelValues(string(d), "error").Inc()
		f.logger.Warn("Option fetch failed, keeping previous options",
			zap.String("dimension", string(d)),
			zap.String("path", signature),
			zap.Uint64("seq", seq),
			zap.Error(fetchErr))
		f.publishAndUnlock(d)
		return
	}

	if slot.degraded {
		slot.degraded = false
		f.metrics.DegradedDimensions.Dec()
	}

	key := string(d) + "|" + signature
	if len(options) == 0 && !slot.set.Empty() && !f.trustEmptyLocked(key) {
		f.metrics.OptionFetchesTotal.WithLabelValues(string(d), "empty").Inc()
		f.metrics.FallbackRetainedTotal.WithLabelValues(string(d)).Inc()
		f.logger.Debug("Empty network options, keeping fallback",
			zap.String("dimension", string(d)),
			zap.String("path", signature),
			zap.Uint64("seq", seq),
			zap.Int("fallback_options", len(slot.set.Options)))
		f.publishAndUnlock(d)
		return
	}

	if len(options) > 0 {
		delete(f.emptySeen, key)
		f.cache.Put(d, signature, options)
	} else {
		f.cache.Delete(d, signature)
	}

	slot.set = &model.OptionSet{
		Dimension: d,
		Signature: signature,
		Sequence:  seq,
		Source:    model.OptionSourceNetwork,
		Options:   append([]model.Option(nil), options...),
	}
	f.metrics.OptionFetchesTotal.WithLabelValues(string(d), "success").Inc()
	f.logger.Debug("Applied option response",
		zap.String("dimension", string(d)),
		zap.String("path", signature),
		zap.Uint64("seq", seq),
		zap.Int("options", len(options)))
	f.publishAndUnlock(d)
}

// trustEmptyLocked records an empty response for key and reports whether
// empties have been seen for longer than EmptyResultTTL
func (f *OptionFetcher) trustEmptyLocked(key string) bool {
	if f.config.EmptyResultTTL <= 0 {
		return false
	}
	first, seen := f.emptySeen[key]
	if !seen {
		f.emptySeen[key] = f.now()
		return false
	}
	if f.now().Sub(first) < f.config.EmptyResultTTL {
		return false
	}
	delete(f.emptySeen, key)
	return true
}

func (f *OptionFetcher) publishAndUnlock(d model.Dimension) {
	fn := f.onPublish
	f.mu.Unlock()
	if fn != nil {
		fn(d)
	}
}

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/devrev/catalogd/internal/client"
	"github.com/devrev/catalogd/internal/errors"
	"github.com/devrev/catalogd/internal/metrics"
	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/service"
	"github.com/devrev/catalogd/internal/store"
	"github.com/devrev/catalogd/internal/testutil"
	"github.com/devrev/catalogd/internal/util/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fetcherOpts struct {
	window   time.Duration
	emptyTTL time.Duration
	fallback *store.FallbackTable
	cache    *store.OptionCache
	metrics  *metrics.Metrics
	pool     *workerpool.Pool
}

func newFetcher(t *testing.T, src client.CatalogSource, o fetcherOpts) *service.OptionFetcher {
	t.Helper()
	if o.window == 0 {
		o.window = 5 * time.Millisecond
	}
	if o.pool == nil {
		o.pool = newPool(t)
	}
	f := service.NewOptionFetcher(&service.OptionFetcherConfig{
		DebounceWindow: o.window,
		EmptyResultTTL: o.emptyTTL,
		FetchTimeout:   time.Second,
	}, src, o.pool, o.fallback, o.cache, o.metrics, zap.NewNop())
	t.Cleanup(f.Close)
	return f
}

func withMake(state *model.FilterState, brand string) *model.FilterState {
	return service.NewCascadeResolver(zap.NewNop()).Apply(state, model.DimensionManufacturer, str(brand))
}

func settled(t *testing.T, f *service.OptionFetcher) {
	t.Helper()
	require.Eventually(t, func() bool { return !f.Pending() }, waitTimeout, 2*time.Millisecond)
}

func TestOptionFetcher_LateResponseIsDiscarded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	src := newGatedSource(model.DimensionModel, false)
	f := newFetcher(t, src, fetcherOpts{metrics: m})

	bmw := withMake(model.NewFilterState(), "BMW")
	f.Observe(bmw)
	first := src.nextList(t)
	assert.Equal(t, "manufacturer=BMW", first.path.Signature())

	f.Observe(withMake(bmw, "Audi"))
	second := src.nextList(t)
	assert.Equal(t, "manufacturer=Audi", second.path.Signature())

	second.respond([]model.Option{{Value: "A4"}}, nil)
	require.Eventually(t, func() bool { return !f.OptionSet(model.DimensionModel).Empty() }, waitTimeout, 2*time.Millisecond)

	first.respond([]model.Option{{Value: "X5"}}, nil)
	settled(t, f)

	set := f.OptionSet(model.DimensionModel)
	assert.Equal(t, []string{"A4"}, optionValues(set.Options))
	assert.Equal(t, "manufacturer=Audi", set.Signature)
	assert.Equal(t, f.LatestSequence(model.DimensionModel), set.Sequence)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.StaleResponsesTotal.WithLabelValues("options")))
}

func TestOptionFetcher_LateResponseForSameSignatureIsDiscarded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	src := newGatedSource(model.DimensionModel, false)
	f := newFetcher(t, src, fetcherOpts{metrics: m})

	bmw := withMake(model.NewFilterState(), "BMW")
	f.Observe(bmw)
	first := src.nextList(t)

	audi := withMake(bmw, "Audi")
	f.Observe(audi)
	second := src.nextList(t)

	f.Observe(withMake(audi, "BMW"))
	third := src.nextList(t)
	require.Equal(t, first.path.Signature(), third.path.Signature())

	third.respond([]model.Option{{Value: "X5-new"}}, nil)
	require.Eventually(t, func() bool { return !f.OptionSet(model.DimensionModel).Empty() }, waitTimeout, 2*time.Millisecond)

	second.respond([]model.Option{{Value: "A4"}}, nil)
	first.respond([]model.Option{{Value: "X5-old"}}, nil)
	settled(t, f)

	set := f.OptionSet(model.DimensionModel)
	assert.Equal(t, []string{"X5-new"}, optionValues(set.Options))
	assert.Equal(t, "manufacturer=BMW", set.Signature)
	assert.Equal(t, f.LatestSequence(model.DimensionModel), set.Sequence)
	assert.Equal(t, 2.0, promtest.ToFloat64(m.StaleResponsesTotal.WithLabelValues("options")))
}

func TestOptionFetcher_DebounceCollapsesBursts(t *testing.T) {
	src := newGatedSource(model.DimensionModel, false)
	f := newFetcher(t, src, fetcherOpts{window: 40 * time.Millisecond})

	state := model.NewFilterState()
	for _, brand := range []string{"BMW", "Audi", "Kia"} {
		state = withMake(state, brand)
		f.Observe(state)
	}
	assert.True(t, f.Pending())

	call := src.nextList(t)
	assert.Equal(t, "manufacturer=Kia", call.path.Signature())
	src.assertNoList(t, 100*time.Millisecond)

	call.respond([]model.Option{{Value: "K5"}}, nil)
	settled(t, f)
	assert.Equal(t, []string{"K5"}, optionValues(f.OptionSet(model.DimensionModel).Options))
}

func TestOptionFetcher_UnchangedPathIsNotRefetched(t *testing.T) {
	src := newGatedSource(model.DimensionModel, false)
	f := newFetcher(t, src, fetcherOpts{})

	state := withMake(model.NewFilterState(), "BMW")
	f.Observe(state)
	src.nextList(t).respond([]model.Option{{Value: "X5"}}, nil)
	settled(t, f)

	color := service.NewCascadeResolver(zap.NewNop()).Apply(state, model.DimensionColor, model.EnumValue{Code: "black"})
	f.Observe(color)
	src.assertNoList(t, 50*time.Millisecond)
}

func TestOptionFetcher_FallbackThenNetwork(t *testing.T) {
	src := newGatedSource(model.DimensionModel, false)
	f := newFetcher(t, src, fetcherOpts{fallback: store.DefaultFallbackTable()})

	f.Observe(withMake(model.NewFilterState(), "BMW"))

	set := f.OptionSet(model.DimensionModel)
	require.NotNil(t, set, "fallback is published synchronously")
	assert.Equal(t, model.OptionSourceFallback, set.Source)
	assert.Equal(t, "1 Series", set.Options[0].Value)

	src.nextList(t).respond([]model.Option{{Value: "X5", Count: 2}}, nil)
	settled(t, f)

	set = f.OptionSet(model.DimensionModel)
	assert.Equal(t, model.OptionSourceNetwork, set.Source)
	assert.Equal(t, []string{"X5"}, optionValues(set.Options))
}

func TestOptionFetcher_EmptyNetworkKeepsFallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	src := newGatedSource(model.DimensionModel, false)
	f := newFetcher(t, src, fetcherOpts{fallback: store.DefaultFallbackTable(), metrics: m})

	f.Observe(withMake(model.NewFilterState(), "BMW"))
	src.nextList(t).respond(nil, nil)
	settled(t, f)

	set := f.OptionSet(model.DimensionModel)
	assert.Equal(t, model.OptionSourceFallback, set.Source)
	assert.Len(t, set.Options, 8)
	assert.False(t, f.Degraded(model.DimensionModel))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.FallbackRetainedTotal.WithLabelValues("model")))
}

func TestOptionFetcher_EmptyTrustedAfterTTL(t *testing.T) {
	src := newGatedSource(model.DimensionModel, false)
	f := newFetcher(t, src, fetcherOpts{fallback: store.DefaultFallbackTable(), emptyTTL: time.Millisecond})

	bmw := withMake(model.NewFilterState(), "BMW")
	f.Observe(bmw)
	src.nextList(t).respond(nil, nil)
	settled(t, f)
	assert.Equal(t, model.OptionSourceFallback, f.OptionSet(model.DimensionModel).Source)

	audi := withMake(bmw, "Audi")
	f.Observe(audi)
	src.nextList(t).respond([]model.Option{{Value: "A4"}}, nil)
	settled(t, f)

	time.Sleep(5 * time.Millisecond)
	f.Observe(withMake(audi, "BMW"))
	src.nextList(t).respond(nil, nil)
	settled(t, f)

	set := f.OptionSet(model.DimensionModel)
	assert.Equal(t, model.OptionSourceNetwork, set.Source)
	assert.True(t, set.Empty())
}

func TestOptionFetcher_EmptyWithoutFallback(t *testing.T) {
	src := newGatedSource(model.DimensionModel, false)
	f := newFetcher(t, src, fetcherOpts{})

	f.Observe(withMake(model.NewFilterState(), "Lada"))
	assert.Nil(t, f.OptionSet(model.DimensionModel))

	src.nextList(t).respond(nil, nil)
	settled(t, f)

	set := f.OptionSet(model.DimensionModel)
	require.NotNil(t, set)
	assert.Equal(t, model.OptionSourceNetwork, set.Source)
	assert.True(t, set.Empty())
}

func TestOptionFetcher_FailureKeepsPreviousAndDegrades(t *testing.T) {
	src := newGatedSource(model.DimensionModel, false)
	f := newFetcher(t, src, fetcherOpts{
		fallback: store.DefaultFallbackTable(),
		cache:    store.NewOptionCache(time.Minute),
	})

	bmw := withMake(model.NewFilterState(), "BMW")
	f.Observe(bmw)
	src.nextList(t).respond([]model.Option{{Value: "X5"}}, nil)
	settled(t, f)

	audi := withMake(bmw, "Audi")
	f.Observe(audi)
	src.nextList(t).respond([]model.Option{{Value: "A4"}}, nil)
	settled(t, f)

	f.Observe(withMake(audi, "BMW"))
	set := f.OptionSet(model.DimensionModel)
	assert.Equal(t, []string{"X5"}, optionValues(set.Options), "cached network list preferred over static table")
	assert.Equal(t, model.OptionSourceFallback, set.Source)

	src.nextList(t).respond(nil, errors.RateLimited(time.Second))
	settled(t, f)

	assert.True(t, f.Degraded(model.DimensionModel))
	assert.Equal(t, []model.Dimension{model.DimensionModel}, f.DegradedDimensions())
	assert.Same(t, set, f.OptionSet(model.DimensionModel), "previous set kept as-is")

	f.Observe(withMake(audi, "Kia"))
	src.nextList(t).respond([]model.Option{{Value: "K5"}}, nil)
	settled(t, f)
	assert.False(t, f.Degraded(model.DimensionModel))
}

func TestOptionFetcher_IndeterminatePathDropsSet(t *testing.T) {
	src := newGatedSource(model.DimensionModel, false)
	f := newFetcher(t, src, fetcherOpts{fallback: store.DefaultFallbackTable()})

	bmw := withMake(model.NewFilterState(), "BMW")
	f.Observe(bmw)
	inflight := src.nextList(t)
	seq := f.LatestSequence(model.DimensionModel)
	require.NotNil(t, f.OptionSet(model.DimensionModel))

	cleared := service.NewCascadeResolver(zap.NewNop()).Apply(bmw, model.DimensionManufacturer, model.Any())
	f.Observe(cleared)
	assert.Nil(t, f.OptionSet(model.DimensionModel))
	assert.Greater(t, f.LatestSequence(model.DimensionModel), seq)

	inflight.respond([]model.Option{{Value: "X5"}}, nil)
	settled(t, f)
	assert.Nil(t, f.OptionSet(model.DimensionModel))
}

func TestOptionFetcher_Prime(t *testing.T) {
	src := client.NewMemorySource(testutil.SampleEntries())
	f := newFetcher(t, src, fetcherOpts{window: time.Hour})

	require.NoError(t, f.Prime(context.Background()))
	assert.False(t, f.Pending())

	makes := f.OptionSet(model.DimensionManufacturer)
	require.NotNil(t, makes)
	assert.Equal(t, []string{"Audi", "BMW", "kia"}, optionValues(makes.Options))
	assert.Equal(t, []string{"5", "7"}, optionValues(f.OptionSet(model.DimensionSeatCount).Options))
	assert.Nil(t, f.OptionSet(model.DimensionModel), "dependent dimensions are not primed")
}

func TestOptionFetcher_PrimeFailure(t *testing.T) {
	src := &mockSource{}
	src.On("ListOptions", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.NetworkError("catalog down", nil))
	f := newFetcher(t, src, fetcherOpts{window: time.Hour})

	err := f.Prime(context.Background())
	assert.Equal(t, errors.ErrCodeNetwork, errors.GetCode(err))
	assert.True(t, f.Degraded(model.DimensionManufacturer))
	assert.True(t, f.Degraded(model.DimensionColor))
	src.AssertNumberOfCalls(t, "ListOptions", 7)
}

func TestOptionFetcher_RejectedSubmitDegrades(t *testing.T) {
	pool := workerpool.New(&workerpool.Config{Name: "stopped", MaxWorkers: 1, QueueSize: 1})
	require.NoError(t, pool.Stop(time.Second))

	f := newFetcher(t, newGatedSource(model.DimensionModel, false), fetcherOpts{pool: pool})
	f.Observe(withMake(model.NewFilterState(), "BMW"))

	require.Eventually(t, func() bool { return f.Degraded(model.DimensionModel) }, waitTimeout, 2*time.Millisecond)
	settled(t, f)
}

func TestOptionFetcher_CloseDropsResults(t *testing.T) {
	src := newGatedSource(model.DimensionModel, false)
	f := newFetcher(t, src, fetcherOpts{})

	f.Observe(withMake(model.NewFilterState(), "BMW"))
	call := src.nextList(t)
	f.Close()

	call.respond([]model.Option{{Value: "X5"}}, nil)
	assert.Nil(t, f.OptionSet(model.DimensionModel))

	f.Observe(withMake(model.NewFilterState(), "Audi"))
	src.assertNoList(t, 30*time.Millisecond)
}

package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/util/workerpool"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitTimeout = 2 * time.Second

func newPool(t *testing.T) *workerpool.Pool {
	t.Helper()
	pool := workerpool.New(&workerpool.Config{Name: "test", MaxWorkers: 8, QueueSize: 64, Logger: zap.NewNop()})
	t.Cleanup(func() { pool.Stop(time.Second) })
	return pool
}

func str(id string) model.Value { return model.StringValue{ID: id} }

func path(values ...string) model.AncestorPath {
	dims := []model.Dimension{model.DimensionManufacturer, model.DimensionModel, model.DimensionGeneration}
	out := make(model.AncestorPath, len(values))
	for i, v := range values {
		out[i] = model.PathElement{Dimension: dims[i], Value: str(v)}
	}
	return out
}

func optionValues(opts []model.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Value
	}
	return out
}

func entryIDs(entries []model.CatalogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

type listReply struct {
	options []model.Option
	err     error
}

// listCall is one ListOptions request held until the test replies
type listCall struct {
	dimension model.Dimension
	path      model.AncestorPath
	reply     chan listReply
}

func (c *listCall) respond(options []model.Option, err error) {
	c.reply <- listReply{options: options, err: err}
}

type searchReply struct {
	result *model.SearchResult
	err    error
}

// searchCall is one Search request held until the test replies
type searchCall struct {
	state *model.FilterState
	limit int
	reply chan searchReply
}

func (c *searchCall) respond(result *model.SearchResult, err error) {
	c.reply <- searchReply{result: result, err: err}
}

// gatedSource holds ListOptions calls for the gated dimension and, when
// gateSearch is set, every Search call until the test answers them.
// Everything else is answered immediately with an empty result.
type gatedSource struct {
	gate       model.Dimension
	gateSearch bool
	lists      chan *listCall
	searches   chan *searchCall
	searchN    int64
}

func newGatedSource(gate model.Dimension, gateSearch bool) *gatedSource {
	return &gatedSource{
		gate:       gate,
		gateSearch: gateSearch,
		lists:      make(chan *listCall, 16),
		searches:   make(chan *searchCall, 16),
	}
}

func (g *gatedSource) ListOptions(ctx context.Context, d model.Dimension, ancestors model.AncestorPath) ([]model.Option, error) {
	if d != g.gate {
		return nil, nil
	}
	call := &listCall{dimension: d, path: ancestors, reply: make(chan listReply, 1)}
	g.lists <- call
	select {
	case r := <-call.reply:
		return r.options, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedSource) Search(ctx context.Context, state *model.FilterState, limit int) (*model.SearchResult, error) {
	atomic.AddInt64(&g.searchN, 1)
	if !g.gateSearch {
		return &model.SearchResult{}, nil
	}
	call := &searchCall{state: state, limit: limit, reply: make(chan searchReply, 1)}
	g.searches <- call
	select {
	case r := <-call.reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedSource) searchCalls() int {
	return int(atomic.LoadInt64(&g.searchN))
}

func (g *gatedSource) nextList(t *testing.T) *listCall {
	t.Helper()
	select {
	case c := <-g.lists:
		return c
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for ListOptions")
		return nil
	}
}

func (g *gatedSource) nextSearch(t *testing.T) *searchCall {
	t.Helper()
	select {
	case c := <-g.searches:
		return c
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for Search")
		return nil
	}
}

func (g *gatedSource) assertNoList(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case c := <-g.lists:
		require.FailNow(t, "unexpected ListOptions", "dimension %s path %s", c.dimension, c.path.Signature())
	case <-time.After(within):
	}
}

// mockSource is a testify mock of client.CatalogSource
type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListOptions(ctx context.Context, d model.Dimension, ancestors model.AncestorPath) ([]model.Option, error) {
	args := m.Called(ctx, d, ancestors)
	opts, _ := args.Get(0).([]model.Option)
	return opts, args.Error(1)
}

func (m *mockSource) Search(ctx context.Context, state *model.FilterState, limit int) (*model.SearchResult, error) {
	args := m.Called(ctx, state, limit)
	res, _ := args.Get(0).(*model.SearchResult)
	return res, args.Error(1)
}

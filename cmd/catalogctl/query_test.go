package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/devrev/catalogd/internal/client"
	"github.com/devrev/catalogd/internal/metrics"
	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/service"
	"github.com/devrev/catalogd/internal/store"
	"github.com/devrev/catalogd/internal/testutil"
	"github.com/devrev/catalogd/internal/util/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSession(t *testing.T) *service.Session {
	t.Helper()
	pool := workerpool.New(&workerpool.Config{Name: "test", MaxWorkers: 4, QueueSize: 64})
	t.Cleanup(func() { pool.Stop(time.Second) })

	s := service.NewSession(&service.SessionConfig{DebounceWindow: time.Millisecond, PageSize: 2},
		client.NewMemorySource(testutil.SampleEntries()), pool,
		store.DefaultFallbackTable(), store.NewOptionCache(time.Minute), metrics.NewNop(), zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

func query(t *testing.T, args queryArgs) queryResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, runQuery(ctx, newSession(t), args, &out))

	var res queryResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	return res
}

func TestRunQuery(t *testing.T) {
	res := query(t, queryArgs{
		// descendant listed first is still applied after its ancestor
		filters: []string{"model=3 Series", "manufacturer=BMW"},
		sort:    "price:asc",
		page:    1,
		options: []string{"generation"},
	})

	assert.Equal(t, map[model.Dimension]string{
		model.DimensionManufacturer: "BMW",
		model.DimensionModel:        "3 Series",
	}, res.Filters)
	assert.Equal(t, model.SortSpec{Key: model.SortByPrice, Direction: model.SortAsc}, res.Sort)
	assert.Equal(t, model.StatusOK, res.Status)

	require.Len(t, res.Page.Items, 1)
	assert.Equal(t, "2", res.Page.Items[0].ID)
	assert.Equal(t, 3, res.Page.TotalCount)

	require.Contains(t, res.Options, model.DimensionGeneration)
	gens := res.Options[model.DimensionGeneration].Options
	values := make([]string, len(gens))
	for i, o := range gens {
		values[i] = o.Value
	}
	assert.Equal(t, []string{model.AnyToken, "F30", "G20"}, values)
	assert.Len(t, res.Options, 1)
}

func TestRunQuery_Range(t *testing.T) {
	res := query(t, queryArgs{filters: []string{"year_range=2021.."}, sort: "year:desc"})
	ids := make([]string, len(res.Page.Items))
	for i, e := range res.Page.Items {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"7", "4"}, ids)
	assert.Equal(t, 4, res.Page.TotalCount)
}

func TestRunQuery_Errors(t *testing.T) {
	tests := []struct {
		name string
		args queryArgs
	}{
		{"missing equals", queryArgs{filters: []string{"manufacturer"}}},
		{"unknown dimension", queryArgs{filters: []string{"wheels=4"}}},
		{"bad range", queryArgs{filters: []string{"price_range=cheap"}}},
		{"bad sort", queryArgs{sort: "colour"}},
		{"negative page", queryArgs{page: -1}},
		{"range options", queryArgs{options: []string{"year_range"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			assert.Error(t, runQuery(ctx, newSession(t), tt.args, &bytes.Buffer{}))
		})
	}
}

func TestDimensionsCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"dimensions"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "manufacturer")
	assert.Contains(t, out.String(), "model,generation,engine,trim_level,grade")
}

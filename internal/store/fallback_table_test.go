package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bmwPath() model.AncestorPath {
	return model.AncestorPath{{Dimension: model.DimensionManufacturer, Value: model.StringValue{ID: "BMW"}}}
}

func TestDefaultFallbackTable(t *testing.T) {
	table := store.DefaultFallbackTable()

	opts, ok := table.Lookup(model.DimensionModel, bmwPath())
	require.True(t, ok)
	assert.Equal(t, "1 Series", opts[0].Value)
	assert.Equal(t, "1 Series", opts[0].Label)

	_, ok = table.Lookup(model.DimensionModel, model.AncestorPath{{
		Dimension: model.DimensionManufacturer, Value: model.StringValue{ID: "Lada"},
	}})
	assert.False(t, ok)

	_, ok = table.Lookup(model.DimensionManufacturer, nil)
	assert.False(t, ok, "no default root list")
}

func TestFallbackTable_LookupCopies(t *testing.T) {
	table := store.NewFallbackTable()
	table.Add(model.DimensionColor, "", []model.Option{{Value: "black"}})

	opts, ok := table.Lookup(model.DimensionColor, nil)
	require.True(t, ok)
	opts[0].Value = "mutated"

	again, _ := table.Lookup(model.DimensionColor, nil)
	assert.Equal(t, "black", again[0].Value)
}

func TestLoadFallbackFile(t *testing.T) {
	dir := t.TempDir()

	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
		return path
	}

	t.Run("merges with defaults", func(t *testing.T) {
		path := write("ok.yaml", `
fallback:
  - dimension: manufacturer
    options: [BMW, Audi, Kia]
  - dimension: generation
    parent: X5
    options: [G05, F15]
`)
		table, err := store.LoadFallbackFile(path)
		require.NoError(t, err)

		roots, ok := table.Lookup(model.DimensionManufacturer, nil)
		require.True(t, ok)
		assert.Len(t, roots, 3)

		gens, ok := table.Lookup(model.DimensionGeneration, model.AncestorPath{
			{Dimension: model.DimensionManufacturer, Value: model.StringValue{ID: "BMW"}},
			{Dimension: model.DimensionModel, Value: model.StringValue{ID: "X5"}},
		})
		require.True(t, ok)
		assert.Equal(t, "G05", gens[0].Value)

		_, ok = table.Lookup(model.DimensionModel, bmwPath())
		assert.True(t, ok, "defaults kept")
	})

	t.Run("rejects range dimension", func(t *testing.T) {
		_, err := store.LoadFallbackFile(write("range.yaml", "fallback:\n  - dimension: year_range\n    options: [\"2020\"]\n"))
		assert.Error(t, err)
	})

	t.Run("rejects missing parent", func(t *testing.T) {
		_, err := store.LoadFallbackFile(write("parent.yaml", "fallback:\n  - dimension: model\n    options: [X5]\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := store.LoadFallbackFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

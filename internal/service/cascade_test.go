package service_test

import (
	"testing"

	"github.com/devrev/catalogd/internal/model"
	"github.com/devrev/catalogd/internal/service"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fullState sets every string dimension of the graph plus two independent facets
func fullState() *model.FilterState {
	return model.NewFilterState().Next(map[model.Dimension]model.Value{
		model.DimensionManufacturer: str("BMW"),
		model.DimensionModel:        str("3 Series"),
		model.DimensionGeneration:   str("G20"),
		model.DimensionGrade:        str("M Sport"),
		model.DimensionEngine:       str("2.0d"),
		model.DimensionTrimLevel:    str("M Sport"),
		model.DimensionColor:        model.EnumValue{Code: "black"},
		model.DimensionYearRange:    model.NewRange(2018, 2022),
	}, nil)
}

func TestCascadeResolver_ResetsEveryDescendant(t *testing.T) {
	r := service.NewCascadeResolver(zap.NewNop())

	for _, d := range model.AllDimensions {
		for _, v := range []model.Value{model.Any(), nil, str("X"), model.EnumValue{Code: "x"}, model.NewRange(1, 2)} {
			before := fullState()
			after := r.Apply(before, d, v)

			if after == before {
				continue
			}
			assert.Equal(t, before.Version()+1, after.Version(), "dimension %s", d)
			for _, desc := range d.Descendants() {
				assert.False(t, after.IsSet(desc), "%s should be reset after %s changed", desc, d)
			}
			for _, other := range model.AllDimensions {
				if other == d || contains(d.Descendants(), other) {
					continue
				}
				a, _ := before.Get(other)
				b, _ := after.Get(other)
				assert.True(t, model.Equal(a, b), "%s must not change when %s changes", other, d)
			}
		}
	}
}

func TestCascadeResolver_ExampleB(t *testing.T) {
	r := service.NewCascadeResolver(zap.NewNop())

	state := model.NewFilterState()
	state = r.Apply(state, model.DimensionManufacturer, str("BMW"))
	state = r.Apply(state, model.DimensionModel, str("X5"))
	state = r.Apply(state, model.DimensionGeneration, str("G05"))
	state = r.Apply(state, model.DimensionEngine, str("3.0"))
	state = r.Apply(state, model.DimensionManufacturer, str("Audi"))
	state = r.Apply(state, model.DimensionModel, str("A4"))

	assert.Equal(t, uint64(6), state.Version())
	assert.Equal(t, map[model.Dimension]model.Value{
		model.DimensionManufacturer: str("Audi"),
		model.DimensionModel:        str("A4"),
	}, state.Values())
}

func TestCascadeResolver_AnyUnsets(t *testing.T) {
	r := service.NewCascadeResolver(zap.NewNop())

	state := r.Apply(fullState(), model.DimensionModel, model.Any())
	assert.True(t, state.IsSet(model.DimensionManufacturer))
	assert.False(t, state.IsSet(model.DimensionModel))
	assert.False(t, state.IsSet(model.DimensionTrimLevel))
	assert.True(t, state.IsSet(model.DimensionColor))
}

func TestCascadeResolver_IndependentDoesNotCascade(t *testing.T) {
	r := service.NewCascadeResolver(zap.NewNop())

	state := r.Apply(fullState(), model.DimensionColor, model.EnumValue{Code: "white"})
	assert.Equal(t, 8, state.Len())
	v, _ := state.Get(model.DimensionColor)
	assert.Equal(t, model.EnumValue{Code: "white"}, v)
}

func TestCascadeResolver_NoOps(t *testing.T) {
	r := service.NewCascadeResolver(zap.NewNop())
	state := model.NewFilterState()

	assert.Same(t, state, r.Apply(state, model.Dimension("wheel_size"), str("19")))
	assert.Same(t, state, r.Apply(state, model.DimensionModel, str("X5")), "manufacturer unset")
}

func TestChanged(t *testing.T) {
	r := service.NewCascadeResolver(zap.NewNop())
	before := fullState()
	after := r.Apply(before, model.DimensionModel, str("X5"))

	assert.Equal(t, []model.Dimension{
		model.DimensionModel,
		model.DimensionGeneration,
		model.DimensionGrade,
		model.DimensionEngine,
		model.DimensionTrimLevel,
	}, service.Changed(before, after))
	assert.Empty(t, service.Changed(after, after))
}

func contains(ds []model.Dimension, d model.Dimension) bool {
	for _, x := range ds {
		if x == d {
			return true
		}
	}
	return false
}

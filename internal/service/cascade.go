package service

import (
	"github.com/devrev/catalogd/internal/model"
	"go.uber.org/zap"
)

// CascadeResolver applies single-dimension changes to a FilterState,
// resetting every dependent dimension in the same transition
type CascadeResolver struct {
	logger *zap.Logger
}

// NewCascadeResolver creates a new cascade resolver
func NewCascadeResolver(logger *zap.Logger) *CascadeResolver {
	return &CascadeResolver{logger: logger}
}

// Apply returns the state that results from setting d to value.
// Any (or nil) unsets d. All transitive descendants of d are unset and the
// version advances by exactly one. Unknown dimensions, and concrete values
// for a dimension whose ancestors are not all set, return state unchanged.
func (r *CascadeResolver) Apply(state *model.FilterState, d model.Dimension, value model.Value) *model.FilterState {
	if !d.Valid() {
		r.logger.Debug("Ignoring change to unknown dimension", zap.String("dimension", string(d)))
		return state
	}

	if !model.IsAny(value) {
		for _, a := range d.Ancestors() {
			if !state.IsSet(a) {
				r.logger.Debug("Ignoring change with unset ancestor",
					zap.String("dimension", string(d)),
					zap.String("ancestor", string(a)))
				return state
			}
		}
	}

	reset := d.Descendants()
	next := state.Next(map[model.Dimension]model.Value{d: value}, reset)

	r.logger.Debug("Applied filter change",
		zap.String("dimension", string(d)),
		zap.String("value", valueString(value)),
		zap.Int("reset", len(reset)),
		zap.Uint64("version", next.Version()))

	return next
}

// Changed returns the dimensions whose value differs between two states
func Changed(prev, next *model.FilterState) []model.Dimension {
	var out []model.Dimension
	for _, d := range model.AllDimensions {
		a, aok := prev.Get(d)
		b, bok := next.Get(d)
		if aok != bok || (aok && !model.Equal(a, b)) {
			out = append(out, d)
		}
	}
	return out
}

func valueString(v model.Value) string {
	if model.IsAny(v) {
		return model.AnyToken
	}
	return v.String()
}

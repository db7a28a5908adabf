package service

import "github.com/devrev/catalogd/internal/model"

// AnyOption is the synthetic entry offered while a dimension is unset
var AnyOption = model.Option{Value: model.AnyToken, Label: "Any"}

// StrictModeClassifier decides per dimension whether the synthetic "any"
// option is offered
type StrictModeClassifier struct{}

// IsStrict reports whether d already holds a concrete value
func (StrictModeClassifier) IsStrict(state *model.FilterState, d model.Dimension) bool {
	return state.IsSet(d)
}

// Render builds the option list shown for d. Non-strict dimensions are
// prefixed with AnyOption; strict ones never are.
func (c StrictModeClassifier) Render(state *model.FilterState, d model.Dimension, set *model.OptionSet, degraded bool) model.RenderedOptions {
	strict := c.IsStrict(state, d)

	options := make([]model.Option, 0, 1+optionCount(set))
	if !strict {
		options = append(options, AnyOption)
	}
	if set != nil {
		for _, o := range set.Options {
			// a remote "any" entry would duplicate or defeat the synthetic one
			if o.Value == model.AnyToken {
				continue
			}
			options = append(options, o)
		}
	}

	return model.RenderedOptions{
		Dimension: d,
		Strict:    strict,
		Degraded:  degraded,
		Options:   options,
	}
}

func optionCount(set *model.OptionSet) int {
	if set == nil {
		return 0
	}
	return len(set.Options)
}

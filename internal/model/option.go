package model

// Option is a single selectable value of a dimension
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// OptionSource records where an OptionSet's options came from
type OptionSource string

const (
	OptionSourceFallback OptionSource = "fallback"
	OptionSourceNetwork  OptionSource = "network"
)

// OptionSet is the published option list of a dimension, tagged with the
// ancestor-path signature and sequence number it was computed under.
// It is never mutated after publication, only replaced.
type OptionSet struct {
	Dimension Dimension
	Signature string
	Sequence  uint64
	Source    OptionSource
	Options   []Option
}

// Empty reports whether the set holds no options
func (s *OptionSet) Empty() bool {
	return s == nil || len(s.Options) == 0
}

// Contains reports whether value is one of the options
func (s *OptionSet) Contains(value string) bool {
	if s == nil {
		return false
	}
	for _, o := range s.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// RenderedOptions is what a renderer shows for a dimension: the options,
// optionally prefixed with the synthetic "any" entry.
type RenderedOptions struct {
	Dimension Dimension `json:"dimension"`
	Strict    bool      `json:"strict"`
	Degraded  bool      `json:"degraded"`
	Options   []Option  `json:"options"`
}

// HasAny reports whether the list starts with the synthetic "any" entry
func (r RenderedOptions) HasAny() bool {
	return len(r.Options) > 0 && r.Options[0].Value == AnyToken
}

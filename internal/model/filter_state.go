package model

import (
	"net/url"
	"strings"
)

// FilterState is an immutable, versioned assignment of values to dimensions.
// A new version is produced for every change; existing versions are never mutated.
type FilterState struct {
	version uint64
	values  map[Dimension]Value
}

// NewFilterState returns the empty state at version 0
func NewFilterState() *FilterState {
	return &FilterState{values: map[Dimension]Value{}}
}

// Version returns the monotonically increasing version number
func (s *FilterState) Version() uint64 {
	return s.version
}

// Get returns the concrete value held by d
func (s *FilterState) Get(d Dimension) (Value, bool) {
	v, ok := s.values[d]
	return v, ok
}

// IsSet reports whether d holds a concrete (non-any) value
func (s *FilterState) IsSet(d Dimension) bool {
	_, ok := s.values[d]
	return ok
}

// Values returns a copy of all concrete assignments
func (s *FilterState) Values() map[Dimension]Value {
	out := make(map[Dimension]Value, len(s.values))
	for d, v := range s.values {
		out[d] = v
	}
	return out
}

// Len returns the number of set dimensions
func (s *FilterState) Len() int {
	return len(s.values)
}

// Next returns a copy of s at version+1 with the given edits applied.
// Sets with an Any value are treated as unsets.
func (s *FilterState) Next(set map[Dimension]Value, unset []Dimension) *FilterState {
	next := &FilterState{
		version: s.version + 1,
		values:  make(map[Dimension]Value, len(s.values)+len(set)),
	}
	for d, v := range s.values {
		next.values[d] = v
	}
	for _, d := range unset {
		delete(next.values, d)
	}
	for d, v := range set {
		if IsAny(v) {
			delete(next.values, d)
			continue
		}
		next.values[d] = v
	}
	return next
}

// AncestorPath returns the concrete values of d's ancestors, root first.
// ok is false when any ancestor is unset, i.e. the path is not yet determinate.
func (s *FilterState) AncestorPath(d Dimension) (AncestorPath, bool) {
	ancestors := d.Ancestors()
	path := make(AncestorPath, 0, len(ancestors))
	for _, a := range ancestors {
		v, ok := s.values[a]
		if !ok {
			return nil, false
		}
		path = append(path, PathElement{Dimension: a, Value: v})
	}
	return path, true
}

// PathElement is one ancestor assignment
type PathElement struct {
	Dimension Dimension
	Value     Value
}

// AncestorPath is an ordered list of ancestor assignments
type AncestorPath []PathElement

// Signature is a canonical string for the path, used to detect path changes
// and as a cache key. Values are query-escaped so distinct paths never
// share a signature. The empty path signs as "".
func (p AncestorPath) Signature() string {
	var b strings.Builder
	for i, e := range p {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(string(e.Dimension))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(e.Value.String()))
	}
	return b.String()
}

// Lookup returns the value of dimension d within the path
func (p AncestorPath) Lookup(d Dimension) (Value, bool) {
	for _, e := range p {
		if e.Dimension == d {
			return e.Value, true
		}
	}
	return nil, false
}

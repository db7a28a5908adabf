package model

import (
	"fmt"
	"strconv"
	"strings"
)

// AnyToken is the wire and display form of the "no filter" choice
const AnyToken = "any"

// Value is the discriminated union held by a dimension.
// Implementations: StringValue, EnumValue, RangeValue, AnyValue.
type Value interface {
	Kind() ValueKind
	String() string
	isValue()
}

// StringValue identifies a catalog entity such as a manufacturer or model
type StringValue struct {
	ID string
}

// EnumValue is a code from a closed vocabulary (colour, fuel type, ...)
type EnumValue struct {
	Code string
}

// RangeValue is an inclusive numeric range. A nil bound is open.
type RangeValue struct {
	Min *float64
	Max *float64
}

// AnyValue is the synthetic "any" sentinel. Applying it unsets a dimension.
type AnyValue struct{}

func (StringValue) Kind() ValueKind { return KindString }
func (EnumValue) Kind() ValueKind   { return KindEnum }
func (RangeValue) Kind() ValueKind  { return KindRange }

// Kind of AnyValue matches no dimension; callers check IsAny first
func (AnyValue) Kind() ValueKind { return -1 }

func (v StringValue) String() string { return v.ID }
func (v EnumValue) String() string   { return v.Code }
func (AnyValue) String() string      { return AnyToken }

func (v RangeValue) String() string {
	return formatBound(v.Min) + ".." + formatBound(v.Max)
}

func (StringValue) isValue() {}
func (EnumValue) isValue()   {}
func (RangeValue) isValue()  {}
func (AnyValue) isValue()    {}

// Any returns the sentinel value
func Any() Value { return AnyValue{} }

// IsAny reports whether v is nil or the sentinel
func IsAny(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(AnyValue)
	return ok
}

// NewRange builds a closed range
func NewRange(min, max float64) RangeValue {
	return RangeValue{Min: &min, Max: &max}
}

// Contains reports whether x falls inside the range
func (v RangeValue) Contains(x float64) bool {
	if v.Min != nil && x < *v.Min {
		return false
	}
	if v.Max != nil && x > *v.Max {
		return false
	}
	return true
}

// Equal compares two values structurally
func Equal(a, b Value) bool {
	if IsAny(a) || IsAny(b) {
		return IsAny(a) && IsAny(b)
	}
	switch av := a.(type) {
	case StringValue:
		bv, ok := b.(StringValue)
		return ok && av.ID == bv.ID
	case EnumValue:
		bv, ok := b.(EnumValue)
		return ok && av.Code == bv.Code
	case RangeValue:
		bv, ok := b.(RangeValue)
		return ok && boundEqual(av.Min, bv.Min) && boundEqual(av.Max, bv.Max)
	default:
		return false
	}
}

// ParseValue converts the textual form used by the HTTP and CLI surfaces into
// the value kind d expects. Ranges are written "min..max" with either side
// optional; "any" (or an empty string) yields the sentinel.
func ParseValue(d Dimension, raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, AnyToken) || strings.EqualFold(raw, "all") {
		return Any(), nil
	}
	switch d.Kind() {
	case KindString:
		return StringValue{ID: raw}, nil
	case KindEnum:
		return EnumValue{Code: raw}, nil
	case KindRange:
		lo, hi, found := strings.Cut(raw, "..")
		if !found {
			return nil, fmt.Errorf("range %q must be written as min..max", raw)
		}
		var rv RangeValue
		var err error
		if rv.Min, err = parseBound(lo); err != nil {
			return nil, fmt.Errorf("invalid range minimum %q: %w", lo, err)
		}
		if rv.Max, err = parseBound(hi); err != nil {
			return nil, fmt.Errorf("invalid range maximum %q: %w", hi, err)
		}
		return rv, nil
	default:
		return nil, fmt.Errorf("unknown dimension %q", d)
	}
}

func parseBound(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func formatBound(b *float64) string {
	if b == nil {
		return ""
	}
	return strconv.FormatFloat(*b, 'f', -1, 64)
}

func boundEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

package validation

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/devrev/catalogd/internal/errors"
	"github.com/devrev/catalogd/internal/model"
)

const (
	// Size limits
	MaxValueLength    = 128
	MaxFreeTextLength = 256

	MaxPageIndex = 10000
)

// Validator validates calls on the public session API
type Validator struct {
	maxValueLength    int
	maxFreeTextLength int
}

// NewValidator creates a new validator with default limits
func NewValidator() *Validator {
	return &Validator{
		maxValueLength:    MaxValueLength,
		maxFreeTextLength: MaxFreeTextLength,
	}
}

// ValidateFilter validates a SetFilter call against the current state
func (v *Validator) ValidateFilter(state *model.FilterState, d model.Dimension, value model.Value) error {
	if !d.Valid() {
		return errors.UnknownDimension(string(d))
	}

	// Any is always accepted: it only ever removes constraints
	if model.IsAny(value) {
		return nil
	}

	if err := v.ValidateValue(d, value); err != nil {
		return err
	}

	for _, a := range d.Ancestors() {
		if !state.IsSet(a) {
			return errors.InvalidValue(string(d), value.String(),
				fmt.Sprintf("%s must be selected first", a))
		}
	}

	return nil
}

// ValidateValue checks that value has the kind d expects and is well formed
func (v *Validator) ValidateValue(d model.Dimension, value model.Value) error {
	if value.Kind() != d.Kind() {
		return errors.InvalidValue(string(d), value.String(),
			fmt.Sprintf("expected %s value, got %s", d.Kind(), value.Kind()))
	}

	switch val := value.(type) {
	case model.StringValue:
		limit := v.maxValueLength
		if d == model.DimensionFreeTextSearch {
			limit = v.maxFreeTextLength
		}
		return v.validateText(d, val.ID, limit)
	case model.EnumValue:
		return v.validateText(d, val.Code, v.maxValueLength)
	case model.RangeValue:
		return v.validateRange(d, val)
	default:
		return errors.InvalidValue(string(d), value.String(), "unsupported value type")
	}
}

func (v *Validator) validateText(d model.Dimension, s string, limit int) error {
	if strings.TrimSpace(s) == "" {
		return errors.InvalidValue(string(d), s, "value cannot be empty")
	}
	if len(s) > limit {
		return errors.InvalidValue(string(d), s[:16]+"...",
			fmt.Sprintf("value exceeds maximum length of %d bytes", limit))
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return errors.InvalidValue(string(d), s, "value cannot contain control characters")
		}
	}
	return nil
}

func (v *Validator) validateRange(d model.Dimension, r model.RangeValue) error {
	if r.Min == nil && r.Max == nil {
		return errors.InvalidValue(string(d), r.String(), "range needs at least one bound")
	}
	for _, b := range []*float64{r.Min, r.Max} {
		if b != nil && (math.IsNaN(*b) || math.IsInf(*b, 0)) {
			return errors.InvalidValue(string(d), r.String(), "range bounds must be finite")
		}
		if b != nil && *b < 0 {
			return errors.InvalidValue(string(d), r.String(), "range bounds cannot be negative")
		}
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return errors.InvalidValue(string(d), r.String(), "range minimum exceeds maximum")
	}
	return nil
}

// ValidateSort validates a SortSpec
func (v *Validator) ValidateSort(spec model.SortSpec) error {
	if !spec.Valid() {
		return errors.Validation(fmt.Sprintf("invalid sort %s", spec)).
			WithDetail("key", string(spec.Key)).
			WithDetail("direction", string(spec.Direction))
	}
	return nil
}

// ValidatePage validates a page index
func (v *Validator) ValidatePage(index int) error {
	if index < 0 {
		return errors.Validation(fmt.Sprintf("page index %d cannot be negative", index)).
			WithDetail("page_index", index)
	}
	if index > MaxPageIndex {
		return errors.Validation(fmt.Sprintf("page index %d exceeds maximum %d", index, MaxPageIndex)).
			WithDetail("page_index", index)
	}
	return nil
}

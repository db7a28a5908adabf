package model

import "strings"

// Dimension identifies a single filter axis of the catalog search
type Dimension string

const (
	DimensionManufacturer   Dimension = "manufacturer"
	DimensionModel          Dimension = "model"
	DimensionGeneration     Dimension = "generation"
	DimensionGrade          Dimension = "grade"
	DimensionEngine         Dimension = "engine"
	DimensionTrimLevel      Dimension = "trim_level"
	DimensionColor          Dimension = "color"
	DimensionFuelType       Dimension = "fuel_type"
	DimensionTransmission   Dimension = "transmission"
	DimensionBodyType       Dimension = "body_type"
	DimensionSeatCount      Dimension = "seat_count"
	DimensionYearRange      Dimension = "year_range"
	DimensionPriceRange     Dimension = "price_range"
	DimensionMileageRange   Dimension = "mileage_range"
	DimensionFreeTextSearch Dimension = "free_text_search"
	DimensionMaxAccidents   Dimension = "max_accidents"
)

// ValueKind is the shape of value a dimension accepts
type ValueKind int

const (
	KindString ValueKind = iota
	KindEnum
	KindRange
)

// String returns the kind name used in error messages
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindRange:
		return "range"
	default:
		return "unknown"
	}
}

// AllDimensions lists every dimension in canonical order.
// Ancestors always precede their descendants.
var AllDimensions = []Dimension{
	DimensionManufacturer,
	DimensionModel,
	DimensionGeneration,
	DimensionGrade,
	DimensionEngine,
	DimensionTrimLevel,
	DimensionColor,
	DimensionFuelType,
	DimensionTransmission,
	DimensionBodyType,
	DimensionSeatCount,
	DimensionYearRange,
	DimensionPriceRange,
	DimensionMileageRange,
	DimensionFreeTextSearch,
	DimensionMaxAccidents,
}

var dimensionKinds = map[Dimension]ValueKind{
	DimensionManufacturer:   KindString,
	DimensionModel:          KindString,
	DimensionGeneration:     KindString,
	DimensionGrade:          KindString,
	DimensionEngine:         KindString,
	DimensionTrimLevel:      KindString,
	DimensionColor:          KindEnum,
	DimensionFuelType:       KindEnum,
	DimensionTransmission:   KindEnum,
	DimensionBodyType:       KindEnum,
	DimensionSeatCount:      KindEnum,
	DimensionYearRange:      KindRange,
	DimensionPriceRange:     KindRange,
	DimensionMileageRange:   KindRange,
	DimensionFreeTextSearch: KindString,
	DimensionMaxAccidents:   KindEnum,
}

// parents holds the single parent of each dependent dimension
var parents = map[Dimension]Dimension{
	DimensionModel:      DimensionManufacturer,
	DimensionGeneration: DimensionModel,
	DimensionGrade:      DimensionGeneration,
	DimensionEngine:     DimensionModel,
	DimensionTrimLevel:  DimensionModel,
}

// children is derived from parents at init, in canonical order
var children = map[Dimension][]Dimension{}

func init() {
	for _, d := range AllDimensions {
		if p, ok := parents[d]; ok {
			children[p] = append(children[p], d)
		}
	}
}

// Valid reports whether d is a recognised dimension
func (d Dimension) Valid() bool {
	_, ok := dimensionKinds[d]
	return ok
}

// Kind returns the value kind accepted by d
func (d Dimension) Kind() ValueKind {
	return dimensionKinds[d]
}

// HasOptions reports whether d is rendered as a selectable option list
func (d Dimension) HasOptions() bool {
	if !d.Valid() || d == DimensionFreeTextSearch {
		return false
	}
	return d.Kind() != KindRange
}

// Parent returns the parent of d in the dependency graph
func (d Dimension) Parent() (Dimension, bool) {
	p, ok := parents[d]
	return p, ok
}

// Ancestors returns the ancestors of d, root first
func (d Dimension) Ancestors() []Dimension {
	var out []Dimension
	for p, ok := parents[d]; ok; p, ok = parents[p] {
		out = append([]Dimension{p}, out...)
	}
	return out
}

// Descendants returns every dimension transitively reachable from d
func (d Dimension) Descendants() []Dimension {
	var out []Dimension
	queue := append([]Dimension(nil), children[d]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, children[next]...)
	}
	return out
}

// Independent reports whether d takes no part in the dependency graph
func (d Dimension) Independent() bool {
	_, hasParent := parents[d]
	return !hasParent && len(children[d]) == 0
}

// ParseDimension resolves a dimension name, accepting upper or mixed case
func ParseDimension(s string) (Dimension, bool) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	return d, d.Valid()
}

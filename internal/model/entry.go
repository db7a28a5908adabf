package model

import (
	"strconv"
	"time"
)

// CatalogEntry is one vehicle listing returned by the remote catalog
type CatalogEntry struct {
	ID              string    `json:"id" yaml:"id"`
	Title           string    `json:"title,omitempty" yaml:"title"`
	Make            string    `json:"make" yaml:"make"`
	Model           string    `json:"model,omitempty" yaml:"model"`
	Generation      string    `json:"generation,omitempty" yaml:"generation"`
	Grade           string    `json:"grade,omitempty" yaml:"grade"`
	Engine          string    `json:"engine,omitempty" yaml:"engine"`
	TrimLevel       string    `json:"trim_level,omitempty" yaml:"trim_level"`
	Color           string    `json:"color,omitempty" yaml:"color"`
	FuelType        string    `json:"fuel_type,omitempty" yaml:"fuel_type"`
	Transmission    string    `json:"transmission,omitempty" yaml:"transmission"`
	BodyType        string    `json:"body_type,omitempty" yaml:"body_type"`
	Seats           int       `json:"seats,omitempty" yaml:"seats"`
	Accidents       int       `json:"accidents" yaml:"accidents"`
	Price           float64   `json:"price" yaml:"price"`
	Year            int       `json:"year" yaml:"year"`
	Mileage         *int64    `json:"mileage,omitempty" yaml:"mileage"` // nil when unknown
	AddedAt         time.Time `json:"added_at" yaml:"added_at"`
	PopularityScore float64   `json:"popularity_score" yaml:"popularity_score"`
}

// Attribute returns the entry's value for a string or enum dimension
func (e *CatalogEntry) Attribute(d Dimension) string {
	switch d {
	case DimensionManufacturer:
		return e.Make
	case DimensionModel:
		return e.Model
	case DimensionGeneration:
		return e.Generation
	case DimensionGrade:
		return e.Grade
	case DimensionEngine:
		return e.Engine
	case DimensionTrimLevel:
		return e.TrimLevel
	case DimensionColor:
		return e.Color
	case DimensionFuelType:
		return e.FuelType
	case DimensionTransmission:
		return e.Transmission
	case DimensionBodyType:
		return e.BodyType
	case DimensionSeatCount:
		if e.Seats == 0 {
			return ""
		}
		return strconv.Itoa(e.Seats)
	case DimensionMaxAccidents:
		return strconv.Itoa(e.Accidents)
	default:
		return ""
	}
}

// SearchResult is the capped dataset returned by a search
type SearchResult struct {
	Entries    []CatalogEntry
	TotalCount int
}

// ResultPage is one fixed-size window over the ordered dataset
type ResultPage struct {
	Items      []CatalogEntry `json:"items"`
	PageIndex  int            `json:"page_index"`
	PageSize   int            `json:"page_size"`
	TotalCount int            `json:"total_count"`
	// Truncated is set when TotalCount exceeds the entries actually held
	Truncated bool `json:"truncated,omitempty"`
}

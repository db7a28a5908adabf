package model

import (
	"fmt"
	"strings"
)

// SortKey selects the comparator used to order the dataset
type SortKey string

const (
	SortByPrice         SortKey = "price"
	SortByYear          SortKey = "year"
	SortByMileage       SortKey = "mileage"
	SortByMake          SortKey = "make"
	SortByRecentlyAdded SortKey = "recently_added"
	SortByPopularity    SortKey = "popularity"
)

// SortDirection is asc or desc
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec is the global ordering applied before pagination
type SortSpec struct {
	Key       SortKey       `json:"key"`
	Direction SortDirection `json:"direction"`
}

// DefaultSort orders by most recently added first
var DefaultSort = SortSpec{Key: SortByRecentlyAdded, Direction: SortDesc}

// Valid reports whether both key and direction are recognised
func (s SortSpec) Valid() bool {
	switch s.Key {
	case SortByPrice, SortByYear, SortByMileage, SortByMake, SortByRecentlyAdded, SortByPopularity:
	default:
		return false
	}
	return s.Direction == SortAsc || s.Direction == SortDesc
}

func (s SortSpec) String() string {
	return string(s.Key) + ":" + string(s.Direction)
}

// ParseSortSpec parses "key:dir"; the direction defaults to asc
func ParseSortSpec(raw string) (SortSpec, error) {
	key, dir, found := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), ":")
	spec := SortSpec{Key: SortKey(key), Direction: SortAsc}
	if found {
		spec.Direction = SortDirection(dir)
	}
	if !spec.Valid() {
		return SortSpec{}, fmt.Errorf("invalid sort %q", raw)
	}
	return spec, nil
}

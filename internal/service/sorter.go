package service

import (
	"sort"
	"strconv"
	"strings"

	"github.com/devrev/catalogd/internal/model"
)

// Sort returns a new slice ordered by spec. The input is not modified.
// Every comparator falls back to id ascending, so the order is total and
// re-sorting a sorted slice with the same spec is the identity.
func Sort(entries []model.CatalogEntry, spec model.SortSpec) []model.CatalogEntry {
	out := append([]model.CatalogEntry(nil), entries...)
	if len(out) < 2 {
		return out
	}

	cmp := comparator(spec)
	sort.SliceStable(out, func(i, j int) bool {
		if c := cmp(&out[i], &out[j]); c != 0 {
			return c < 0
		}
		return idLess(out[i].ID, out[j].ID)
	})
	return out
}

// Paginate slices one page out of an ordered dataset. A page past the end
// yields an empty item list; the caller validates negative indexes.
func Paginate(ordered []model.CatalogEntry, pageIndex, pageSize, totalCount int) model.ResultPage {
	page := model.ResultPage{
		Items:      []model.CatalogEntry{},
		PageIndex:  pageIndex,
		PageSize:   pageSize,
		TotalCount: totalCount,
		Truncated:  totalCount > len(ordered),
	}
	if pageSize <= 0 || pageIndex < 0 {
		return page
	}

	start := pageIndex * pageSize
	if start >= len(ordered) {
		return page
	}
	end := start + pageSize
	if end > len(ordered) {
		end = len(ordered)
	}
	page.Items = append(page.Items, ordered[start:end]...)
	return page
}

// PageCount returns the number of pages needed for n entries
func PageCount(n, pageSize int) int {
	if pageSize <= 0 || n <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

// comparator returns a three-way compare for spec's key, already
// adjusted for direction
func comparator(spec model.SortSpec) func(a, b *model.CatalogEntry) int {
	sign := 1
	if spec.Direction == model.SortDesc {
		sign = -1
	}

	switch spec.Key {
	case model.SortByPrice:
		return func(a, b *model.CatalogEntry) int { return sign * compareFloat(a.Price, b.Price) }
	case model.SortByYear:
		return func(a, b *model.CatalogEntry) int { return sign * compareInt(int64(a.Year), int64(b.Year)) }
	case model.SortByMileage:
		return func(a, b *model.CatalogEntry) int {
			// unknown mileage goes last in both directions
			switch {
			case a.Mileage == nil && b.Mileage == nil:
				return 0
			case a.Mileage == nil:
				return 1
			case b.Mileage == nil:
				return -1
			}
			return sign * compareInt(*a.Mileage, *b.Mileage)
		}
	case model.SortByMake:
		return func(a, b *model.CatalogEntry) int {
			return sign * strings.Compare(strings.ToLower(a.Make), strings.ToLower(b.Make))
		}
	case model.SortByRecentlyAdded:
		return func(a, b *model.CatalogEntry) int {
			switch {
			case a.AddedAt.Before(b.AddedAt):
				return -sign
			case a.AddedAt.After(b.AddedAt):
				return sign
			}
			return 0
		}
	case model.SortByPopularity:
		return func(a, b *model.CatalogEntry) int { return sign * compareFloat(a.PopularityScore, b.PopularityScore) }
	default:
		return func(a, b *model.CatalogEntry) int { return 0 }
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// idLess orders numeric ids numerically ("2" < "10") and falls back to
// byte order otherwise
func idLess(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		if ai != bi {
			return ai < bi
		}
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	}
	return a < b
}

package client

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/devrev/catalogd/internal/model"
	"gopkg.in/yaml.v3"
)

// MemorySource serves a fixed set of listings from memory, filtering them the
// way the remote API does. It backs local runs, the CLI and tests.
type MemorySource struct {
	mu       sync.RWMutex
	entries  []model.CatalogEntry
	searches int64
	listings int64
}

type seedFile struct {
	Entries []model.CatalogEntry `yaml:"entries"`
}

// NewMemorySource creates a source over a copy of entries
func NewMemorySource(entries []model.CatalogEntry) *MemorySource {
	return &MemorySource{entries: append([]model.CatalogEntry(nil), entries...)}
}

// LoadSeedFile reads listings from a YAML file with a top-level "entries" list
func LoadSeedFile(path string) ([]model.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i, e := range seed.Entries {
		if e.ID == "" {
			return nil, fmt.Errorf("seed entry %d has no id", i)
		}
	}
	return seed.Entries, nil
}

// Replace swaps the served listings
func (s *MemorySource) Replace(entries []model.CatalogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]model.CatalogEntry(nil), entries...)
}

// SearchCalls returns how many times Search has been called
func (s *MemorySource) SearchCalls() int {
	return int(atomic.LoadInt64(&s.searches))
}

// ListCalls returns how many times ListOptions has been called
func (s *MemorySource) ListCalls() int {
	return int(atomic.LoadInt64(&s.listings))
}

// ListOptions counts distinct values of d among entries matching ancestors
func (s *MemorySource) ListOptions(ctx context.Context, d model.Dimension, ancestors model.AncestorPath) ([]model.Option, error) {
	atomic.AddInt64(&s.listings, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{}
	for i := range s.entries {
		e := &s.entries[i]
		if !matchesPath(e, ancestors) {
			continue
		}
		if v := e.Attribute(d); v != "" {
			counts[v]++
		}
	}

	options := make([]model.Option, 0, len(counts))
	for v, n := range counts {
		options = append(options, model.Option{Value: v, Label: v, Count: n})
	}
	sort.Slice(options, func(i, j int) bool {
		return naturalLess(options[i].Value, options[j].Value)
	})
	return options, nil
}

// Search filters entries by state and truncates to limit
func (s *MemorySource) Search(ctx context.Context, state *model.FilterState, limit int) (*model.SearchResult, error) {
	atomic.AddInt64(&s.searches, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.CatalogEntry
	for i := range s.entries {
		if MatchEntry(state, &s.entries[i]) {
			matched = append(matched, s.entries[i])
		}
	}

	total := len(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return &model.SearchResult{Entries: matched, TotalCount: total}, nil
}

// MatchEntry reports whether e satisfies every concrete value in state
func MatchEntry(state *model.FilterState, e *model.CatalogEntry) bool {
	for d, v := range state.Values() {
		if !matchValue(d, v, e) {
			return false
		}
	}
	return true
}

func matchesPath(e *model.CatalogEntry, path model.AncestorPath) bool {
	for _, p := range path {
		if !matchValue(p.Dimension, p.Value, e) {
			return false
		}
	}
	return true
}

func matchValue(d model.Dimension, v model.Value, e *model.CatalogEntry) bool {
	switch val := v.(type) {
	case model.StringValue:
		if d == model.DimensionFreeTextSearch {
			return matchText(val.ID, e)
		}
		return strings.EqualFold(e.Attribute(d), val.ID)
	case model.EnumValue:
		if d == model.DimensionMaxAccidents {
			limit, err := strconv.Atoi(val.Code)
			return err == nil && e.Accidents <= limit
		}
		return strings.EqualFold(e.Attribute(d), val.Code)
	case model.RangeValue:
		switch d {
		case model.DimensionYearRange:
			return val.Contains(float64(e.Year))
		case model.DimensionPriceRange:
			return val.Contains(e.Price)
		case model.DimensionMileageRange:
			return e.Mileage != nil && val.Contains(float64(*e.Mileage))
		}
		return true
	case model.AnyValue:
		return true
	default:
		return false
	}
}

func matchText(query string, e *model.CatalogEntry) bool {
	haystack := strings.ToLower(strings.Join([]string{e.Title, e.Make, e.Model, e.Generation, e.TrimLevel}, " "))
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// naturalLess orders numeric strings numerically and everything else lexically
func naturalLess(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return strings.ToLower(a) < strings.ToLower(b)
}

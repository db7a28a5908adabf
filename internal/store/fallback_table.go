package store

import (
	"fmt"
	"os"
	"sync"

	"github.com/devrev/catalogd/internal/model"
	"gopkg.in/yaml.v3"
)

// FallbackTable holds approximate option lists that can be shown
// synchronously while the network request is in flight
type FallbackTable struct {
	mu      sync.RWMutex
	entries map[string][]model.Option
}

// FallbackEntry is one row of a fallback file
type FallbackEntry struct {
	Dimension model.Dimension `yaml:"dimension"`
	// Parent is the value of the dimension's direct parent; empty for roots
	Parent  string   `yaml:"parent"`
	Options []string `yaml:"options"`
}

type fallbackFile struct {
	Entries []FallbackEntry `yaml:"fallback"`
}

// NewFallbackTable returns an empty table
func NewFallbackTable() *FallbackTable {
	return &FallbackTable{entries: make(map[string][]model.Option)}
}

// DefaultFallbackTable returns a table seeded with well-known models
func DefaultFallbackTable() *FallbackTable {
	t := NewFallbackTable()
	for brand, models := range defaultModels {
		t.Add(model.DimensionModel, brand, labelled(models))
	}
	return t
}

// LoadFallbackFile reads a YAML fallback file on top of the defaults
func LoadFallbackFile(path string) (*FallbackTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback file: %w", err)
	}

	var file fallbackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fallback file: %w", err)
	}

	t := DefaultFallbackTable()
	for i, e := range file.Entries {
		if !e.Dimension.HasOptions() {
			return nil, fmt.Errorf("fallback entry %d: dimension %q has no option list", i, e.Dimension)
		}
		if _, hasParent := e.Dimension.Parent(); hasParent && e.Parent == "" {
			return nil, fmt.Errorf("fallback entry %d: %s needs a parent value", i, e.Dimension)
		}
		t.Add(e.Dimension, e.Parent, labelled(e.Options))
	}
	return t, nil
}

// Add registers the options of d under the given direct-parent value
func (t *FallbackTable) Add(d model.Dimension, parent string, options []model.Option) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[fallbackKey(d, parent)] = options
}

// Lookup returns the fallback options of d for the given ancestor path.
// The table is keyed by the nearest ancestor only.
func (t *FallbackTable) Lookup(d model.Dimension, path model.AncestorPath) ([]model.Option, bool) {
	parent := ""
	if len(path) > 0 {
		parent = path[len(path)-1].Value.String()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	opts, ok := t.entries[fallbackKey(d, parent)]
	if !ok || len(opts) == 0 {
		return nil, false
	}
	return append([]model.Option(nil), opts...), true
}

func fallbackKey(d model.Dimension, parent string) string {
	return string(d) + "|" + parent
}

func labelled(values []string) []model.Option {
	out := make([]model.Option, len(values))
	for i, v := range values {
		out[i] = model.Option{Value: v, Label: v}
	}
	return out
}

var defaultModels = map[string][]string{
	"BMW":           {"1 Series", "3 Series", "5 Series", "7 Series", "X1", "X3", "X5", "X7"},
	"Audi":          {"A3", "A4", "A6", "A8", "Q3", "Q5", "Q7"},
	"Mercedes-Benz": {"A-Class", "C-Class", "E-Class", "S-Class", "GLC", "GLE"},
	"Toyota":        {"Camry", "Corolla", "RAV4", "Land Cruiser", "Prius"},
	"Hyundai":       {"Avante", "Sonata", "Tucson", "Santa Fe", "Grandeur"},
	"Kia":           {"K5", "K8", "Sportage", "Sorento", "Carnival"},
	"Volkswagen":    {"Golf", "Passat", "Tiguan", "Touareg"},
}

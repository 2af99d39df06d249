// Package dataset holds the static fallback blueprints used when live
// acquisition or generation fails. It is loaded once and never mutated.
package dataset

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ibeckermayer/xblueprint/internal/types"
)

//go:embed accounts.yaml
var embeddedAccounts []byte

// Entry is one pre-baked account
type Entry struct {
	Profile  types.Profile            `yaml:"profile"`
	Items    []types.ContentItem      `yaml:"tweets"`
	Analysis types.StructuredAnalysis `yaml:"analysis"`
}

// Dataset is an immutable handle→entry table
type Dataset struct {
	entries map[string]Entry
	handles []string
	pick    func(n int) int
}

// Default parses the embedded dataset.
func Default() (*Dataset, error) {
	return Parse(embeddedAccounts)
}

// Parse builds a dataset from YAML keyed by handle.
func Parse(data []byte) (*Dataset, error) {
	var raw map[string]Entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse fallback dataset: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("fallback dataset is empty")
	}

	d := &Dataset{
		entries: make(map[string]Entry, len(raw)),
		pick:    rand.IntN,
	}
	for handle, e := range raw {
		key := normalize(handle)
		if e.Profile.Handle == "" {
			e.Profile.Handle = key
		}
		d.entries[key] = e
		d.handles = append(d.handles, key)
	}
	sort.Strings(d.handles)
	return d, nil
}

// WithPicker returns a copy that uses pick to choose random entries.
func (d *Dataset) WithPicker(pick func(n int) int) *Dataset {
	cp := *d
	cp.pick = pick
	return &cp
}

// Lookup returns the entry for handle, if any.
func (d *Dataset) Lookup(handle string) (Entry, bool) {
	e, ok := d.entries[normalize(handle)]
	return cloneEntry(e), ok
}

// Random returns an arbitrary entry.
func (d *Dataset) Random() Entry {
	idx := d.pick(len(d.handles))
	return cloneEntry(d.entries[d.handles[idx]])
}

func normalize(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// cloneEntry copies slices so callers cannot mutate the shared table.
func cloneEntry(e Entry) Entry {
	e.Items = append([]types.ContentItem(nil), e.Items...)
	a := e.Analysis
	a.Themes = append([]string(nil), a.Themes...)
	a.Beliefs.Pushes = append([]string(nil), a.Beliefs.Pushes...)
	a.Beliefs.Avoids = append([]string(nil), a.Beliefs.Avoids...)
	a.Formulas = append([]string(nil), a.Formulas...)
	a.ExampleContent = append([]string(nil), a.ExampleContent...)
	e.Analysis = a
	return e
}

// Package templates stores named snapshots of the shift form fields.
// A template has its own lifecycle, independent of sessions, and is
// used purely to prefill a new form.
package templates

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"prodmon/engine"
	"prodmon/kvstore"
)

// KeyPrefix namespaces template records in the key-value store.
const KeyPrefix = "production_template:"

// Template is a named ShiftInput snapshot. The date field of the
// embedded input is not meaningful: applying a template keeps the
// form's current date.
type Template struct {
	Name string `json:"name"`
	engine.ShiftInput
	CreatedAt string `json:"created_at"`
}

// Store persists templates as small keyed records.
type Store struct {
	kv *kvstore.Store
}

func NewStore(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

func key(name string) string {
	return KeyPrefix + name
}

// Save stores the template under its name, overwriting any previous
// template with that name.
func (s *Store) Save(t Template) error {
	if s.kv == nil {
		return fmt.Errorf("no key-value store available")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name is required")
	}
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	t.Date = ""

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	return s.kv.Set(key(t.Name), data)
}

// Get fetches one template by name. The second result is false when
// no template has that name.
func (s *Store) Get(name string) (Template, bool, error) {
	var t Template
	if s.kv == nil {
		return t, false, fmt.Errorf("no key-value store available")
	}

	data, found, err := s.kv.Get(key(name))
	if err != nil || !found {
		return t, false, err
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, false, fmt.Errorf("failed to parse template %q: %w", name, err)
	}
	return t, true, nil
}

// List returns all templates sorted by name.
func (s *Store) List() ([]Template, error) {
	if s.kv == nil {
		return nil, fmt.Errorf("no key-value store available")
	}

	keys, err := s.kv.Keys(KeyPrefix)
	if err != nil {
		return nil, err
	}

	templates := make([]Template, 0, len(keys))
	for _, k := range keys {
		name := strings.TrimPrefix(k, KeyPrefix)
		t, found, err := s.Get(name)
		if err != nil {
			return nil, err
		}
		if found {
			templates = append(templates, t)
		}
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

// Delete removes a template. Deleting an unknown name is not an error.
func (s *Store) Delete(name string) error {
	if s.kv == nil {
		return fmt.Errorf("no key-value store available")
	}
	return s.kv.Delete(key(name))
}

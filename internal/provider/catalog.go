package provider

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Entry is one provider in the YAML catalog.
type Entry struct {
	ID                string            `yaml:"id"`
	Name              string            `yaml:"name"`
	Type              string            `yaml:"type"`
	Kinds             []Kind            `yaml:"kinds"`
	Priority          int               `yaml:"priority"`
	CredentialEnv     string            `yaml:"credential_env"`
	Model             string            `yaml:"model"`
	Endpoint          string            `yaml:"endpoint"`
	RequestsPerMinute int               `yaml:"requests_per_minute"`
	Enabled           *bool             `yaml:"enabled"`
	Options           map[string]string `yaml:"options"`
	// Styles restricts the provider to the listed styles when non-empty.
	Styles []string `yaml:"styles"`
}

// IsEnabled reports whether the entry should be registered. Entries default
// to enabled.
func (e Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Catalog is the static provider configuration read at startup.
type Catalog struct {
	Providers []Entry `yaml:"providers"`
}

// LoadCatalog decodes and validates a YAML catalog.
func LoadCatalog(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Catalog{}, fmt.Errorf("decode provider catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// LoadCatalogFile reads the catalog at path.
func LoadCatalogFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open provider catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Validate checks ids, kinds and types of every entry.
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for i, e := range c.Providers {
		if e.ID == "" {
			return fmt.Errorf("catalog entry %d: missing id", i)
		}
		if seen[e.ID] {
			return fmt.Errorf("catalog entry %q: duplicate id", e.ID)
		}
		seen[e.ID] = true
		if e.Type == "" {
			return fmt.Errorf("catalog entry %q: missing type", e.ID)
		}
		if len(e.Kinds) == 0 {
			return fmt.Errorf("catalog entry %q: missing kinds", e.ID)
		}
		for _, k := range e.Kinds {
			if !k.Valid() {
				return fmt.Errorf("catalog entry %q: unknown kind %q", e.ID, k)
			}
		}
		if e.RequestsPerMinute < 0 {
			return fmt.Errorf("catalog entry %q: negative requests_per_minute", e.ID)
		}
	}
	return nil
}

// Override adjusts a catalog entry from persisted provider configuration.
// Nil fields leave the catalog value untouched.
type Override struct {
	ProviderID string
	Priority   *int
	Enabled    *bool
}

// ApplyOverrides returns a copy of entries with overrides applied by id.
// Overrides for unknown ids are ignored.
func ApplyOverrides(entries []Entry, overrides []Override) []Entry {
	out := slices.Clone(entries)
	index := make(map[string]int, len(out))
	for i, e := range out {
		index[e.ID] = i
	}
	for _, o := range overrides {
		i, ok := index[o.ProviderID]
		if !ok {
			continue
		}
		if o.Priority != nil {
			out[i].Priority = *o.Priority
		}
		if o.Enabled != nil {
			enabled := *o.Enabled
			out[i].Enabled = &enabled
		}
	}
	return out
}

// Factory builds the executor for a catalog entry. credential is the value
// of the entry's credential variable at startup and may be empty.
type Factory func(e Entry, credential string) (Executor, error)

// Build turns enabled entries into descriptors, in catalog order, using the
// factory registered for each entry's type. Availability is re-read from
// getenv on every selection.
func Build(entries []Entry, factories map[string]Factory, getenv func(string) string) ([]Descriptor, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	out := make([]Descriptor, 0, len(entries))
	for _, e := range entries {
		if !e.IsEnabled() {
			continue
		}
		factory, ok := factories[e.Type]
		if !ok {
			return nil, fmt.Errorf("provider %q: no factory for type %q", e.ID, e.Type)
		}
		var credential string
		if e.CredentialEnv != "" {
			credential = getenv(e.CredentialEnv)
		}
		exec, err := factory(e, credential)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", e.ID, err)
		}
		name := e.Name
		if name == "" {
			name = e.ID
		}
		out = append(out, Descriptor{
			ID:        e.ID,
			Name:      name,
			Priority:  e.Priority,
			Kinds:     slices.Clone(e.Kinds),
			Supports:  styleFilter(e.Styles),
			Available: CredentialFrom(getenv, e.CredentialEnv),
			Executor:  RateLimited(exec, e.RequestsPerMinute),
		})
	}
	return out, nil
}

func styleFilter(styles []string) func(Request) bool {
	if len(styles) == 0 {
		return nil
	}
	allowed := slices.Clone(styles)
	return func(req Request) bool {
		return req.Style == "" || slices.Contains(allowed, req.Style)
	}
}

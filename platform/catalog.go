package platform

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"reelcomposer/types"
)

//go:embed templates.yaml
var defaultTemplates []byte

type catalogFile struct {
	Version   int        `yaml:"version"`
	Templates []Template `yaml:"templates"`
}

// Catalog is an immutable set of templates keyed by platform identifier.
// Lookups return copies so callers cannot alter the shared table.
type Catalog struct {
	templates map[string]Template
}

// Default parses the embedded catalog
func Default() (*Catalog, error) {
	return Parse(defaultTemplates)
}

// Load reads a catalog from a YAML file, or the embedded one when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Templates) == 0 {
		return nil, fmt.Errorf("catalog has no templates")
	}

	c := &Catalog{templates: make(map[string]Template, len(f.Templates))}
	for i := range f.Templates {
		t := f.Templates[i]
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("invalid template: %w", err)
		}
		if _, dup := c.templates[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.ID)
		}
		c.templates[t.ID] = t
	}
	return c, nil
}

// Get returns the template for a platform. Unknown identifiers are an InvalidRequest.
func (c *Catalog) Get(id string) (*Template, error) {
	t, ok := c.templates[id]
	if !ok {
		return nil, types.NewError(types.KindInvalidRequest, "platform", fmt.Sprintf("unknown platform %q", id), nil)
	}
	return &t, nil
}

// IDs lists the known platform identifiers in sorted order
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.templates))
	for id := range c.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

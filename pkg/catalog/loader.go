package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog file format (YAML):
//
//	indicators:
//	  crisis_language:
//	    - pattern: "want to die"
//	      weight: 2
//	    - "no point"              # shorthand, weight 1
//	resources:
//	  mental_health:
//	    - name: "988 Suicide & Crisis Lifeline"
//	      description: "24/7 crisis support"
//	      contact: "Call or text 988"
//	      availability: "24/7"
//	actions:
//	  mental_health:
//	    - "Pause normal processing immediately"
//
// Resources and actions are optional in the file; categories omitted from
// the file simply have no indicators. Loading never falls back silently:
// any structural problem is an error so the caller can refuse to start.

// indicatorSpec accepts either a bare string or a {pattern, weight} mapping.
type indicatorSpec struct {
	Pattern string `yaml:"pattern"`
	Weight  int    `yaml:"weight"`
}

func (s *indicatorSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Pattern = node.Value
		s.Weight = 1
		return nil
	}
	type plain indicatorSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	if p.Weight == 0 {
		p.Weight = 1
	}
	*s = indicatorSpec(p)
	return nil
}

type catalogFile struct {
	Indicators map[string][]indicatorSpec `yaml:"indicators"`
	Resources  map[string][]Resource      `yaml:"resources"`
	Actions    map[string][]string        `yaml:"actions"`
}

// Load reads a catalog from a YAML file. The returned catalog carries the
// file's indicators plus its resources and actions; crisis types missing
// from the file fall back to the built-in resource tables so crisis
// resources can never be configured away.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from raw YAML bytes. Used by Load and by tests
// that construct synthetic catalogs.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	c := newCatalog()

	for name, specs := range file.Indicators {
		cat := Category(name)
		if !cat.Valid() {
			return nil, fmt.Errorf("catalog: unknown category %q", name)
		}
		for _, spec := range specs {
			if spec.Pattern == "" {
				return nil, fmt.Errorf("catalog: empty pattern in category %q", name)
			}
			if spec.Weight < 0 {
				return nil, fmt.Errorf("catalog: negative weight for %q in category %q",
					spec.Pattern, name)
			}
			c.register(cat, spec.Pattern, spec.Weight)
		}
	}

	// Resources: file entries win per crisis type, defaults fill the gaps.
	for crisisType, rs := range Default().resources {
		c.resources[crisisType] = rs
	}
	for crisisType, rs := range file.Resources {
		if len(rs) == 0 {
			return nil, fmt.Errorf("catalog: crisis type %q declares an empty resource bundle", crisisType)
		}
		c.resources[crisisType] = rs
	}

	for crisisType, as := range Default().actions {
		c.actions[crisisType] = as
	}
	for crisisType, as := range file.Actions {
		c.actions[crisisType] = as
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

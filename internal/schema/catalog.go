package schema

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/starford/netmount/internal/apperr"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Catalog is the static set of storage kinds this application can configure.
type Catalog struct {
	kinds []Schema
	byKey map[string]int
}

type catalogFile struct {
	Kinds []Schema `yaml:"kinds"`
}

// DefaultCatalog parses the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(embeddedCatalog)
}

// ParseCatalog builds a Catalog from a YAML document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("schema: parse catalog: %w", err)
	}
	c := &Catalog{byKey: make(map[string]int, len(f.Kinds))}
	for _, s := range f.Kinds {
		if s.Kind == "" {
			return nil, fmt.Errorf("schema: catalog entry without kind")
		}
		if _, dup := c.byKey[s.Kind]; dup {
			return nil, fmt.Errorf("schema: duplicate kind %q", s.Kind)
		}
		if err := normalizeSchema(&s); err != nil {
			return nil, err
		}
		c.byKey[s.Kind] = len(c.kinds)
		c.kinds = append(c.kinds, s)
	}
	return c, nil
}

// normalizeSchema checks key uniqueness across both buckets and converts
// YAML scalars into the Go shapes the rest of the package expects.
func normalizeSchema(s *Schema) error {
	seen := make(map[string]struct{})
	for _, b := range []Bucket{s.Standard, s.Advanced} {
		for i := range b {
			d := &b[i]
			if d.Key == "" {
				return fmt.Errorf("schema: %s: definition without key", s.Kind)
			}
			if _, dup := seen[d.Key]; dup {
				return fmt.Errorf("schema: %s: duplicate key %q", s.Kind, d.Key)
			}
			seen[d.Key] = struct{}{}

			switch d.Type {
			case "":
				d.Type = Text
			case Enum:
				if len(d.Options) == 0 {
					return fmt.Errorf("schema: %s.%s: enum without options", s.Kind, d.Key)
				}
				if d.Selected == nil {
					d.Selected = d.Options[0].Value
				} else if !d.HasOption(d.Selected) {
					return fmt.Errorf("schema: %s.%s: selected value is not an option", s.Kind, d.Key)
				}
				continue
			}
			if d.Default != nil {
				v, ok := coerce(d.Type, d.Default)
				if !ok {
					return fmt.Errorf("schema: %s.%s: default does not match type %s", s.Kind, d.Key, d.Type)
				}
				d.Default = v
			}
		}
	}
	return nil
}

// SchemaFor returns a copy of the schema registered for kind.
func (c *Catalog) SchemaFor(kind string) (Schema, error) {
	i, ok := c.byKey[kind]
	if !ok {
		return Schema{}, fmt.Errorf("schema: %q: %w", kind, apperr.ErrUnknownKind)
	}
	return c.kinds[i].Clone(), nil
}

// Kinds lists every registered kind in catalog order.
func (c *Catalog) Kinds() []Schema {
	out := make([]Schema, len(c.kinds))
	for i, s := range c.kinds {
		out[i] = s.Clone()
	}
	return out
}

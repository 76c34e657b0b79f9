// Package schema holds the per-kind configuration schema of storages: which
// parameters a kind accepts, their defaults, and the rules user input must
// satisfy before a storage definition is sent to the backend.
package schema

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Type tags the shape of a parameter value.
type Type string

const (
	Text    Type = "text"
	Number  Type = "number"
	Boolean Type = "boolean"
	TagList Type = "tag-list"
	Enum    Type = "enum"
)

// UnmarshalYAML rejects unknown type tags.
func (t *Type) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	switch Type(s) {
	case Text, Number, Boolean, TagList, Enum:
		*t = Type(s)
		return nil
	}
	return fmt.Errorf("schema: unknown parameter type %q", s)
}

// Option is one choice of an Enum parameter.
type Option struct {
	Label string `yaml:"label" json:"label"`
	Value any    `yaml:"value" json:"value"`
}

// Constraints are optional per-parameter rules.
type Constraints struct {
	Min     *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Pattern string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// Definition describes one parameter. Options and Selected are only
// meaningful for Enum; Default holds the value for every other type.
type Definition struct {
	Key         string      `yaml:"key" json:"key"`
	Type        Type        `yaml:"type" json:"type"`
	Default     any         `yaml:"default,omitempty" json:"default,omitempty"`
	Options     []Option    `yaml:"options,omitempty" json:"options,omitempty"`
	Selected    any         `yaml:"selected,omitempty" json:"selected,omitempty"`
	Required    bool        `yaml:"required,omitempty" json:"required,omitempty"`
	Constraints Constraints `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// HasOption reports whether v is the value of one of d's options.
func (d Definition) HasOption(v any) bool {
	return slices.ContainsFunc(d.Options, func(o Option) bool {
		return sameValue(o.Value, v)
	})
}

// Resolved returns the value d contributes when the user leaves it unset.
func (d Definition) Resolved() any {
	if d.Type == Enum {
		return d.Selected
	}
	return d.Default
}

// Bucket is an ordered group of definitions.
type Bucket []Definition

// Clone returns a deep enough copy of b that callers may change defaults and
// selections without touching the catalog.
func (b Bucket) Clone() Bucket {
	if b == nil {
		return nil
	}
	out := make(Bucket, len(b))
	for i, d := range b {
		d.Options = slices.Clone(d.Options)
		if tags, ok := d.Default.([]string); ok {
			d.Default = slices.Clone(tags)
		}
		out[i] = d
	}
	return out
}

// Schema is the configuration schema of one storage kind.
type Schema struct {
	Kind        string `yaml:"kind" json:"kind"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	DefaultName string `yaml:"default_name" json:"default_name"`
	Standard    Bucket `yaml:"standard" json:"standard"`
	Advanced    Bucket `yaml:"advanced" json:"advanced"`
}

// Definitions returns standard followed by advanced definitions.
func (s Schema) Definitions() []Definition {
	return slices.Concat(s.Standard, s.Advanced)
}

// Lookup finds the definition for key in either bucket.
func (s Schema) Lookup(key string) (Definition, bool) {
	for _, d := range s.Definitions() {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}

// Clone returns a copy of s with cloned buckets.
func (s Schema) Clone() Schema {
	s.Standard = s.Standard.Clone()
	s.Advanced = s.Advanced.Clone()
	return s
}

// Parameters maps parameter keys to the values supplied for one storage.
type Parameters map[string]any

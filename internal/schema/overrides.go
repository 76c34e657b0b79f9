package schema

// MergeOverrides returns a copy of b whose defaults reflect existing, the
// configuration currently stored for a storage. Enum definitions only take a
// value that is one of their options; anything else keeps the default
// selection. Other types take the existing value, converted to the
// definition's type when possible and kept verbatim otherwise. Empty existing
// values are ignored.
func MergeOverrides(b Bucket, existing Parameters) Bucket {
	out := b.Clone()
	for i := range out {
		d := &out[i]
		v, ok := existing[d.Key]
		if !ok || isEmpty(v) {
			continue
		}
		if d.Type == Enum {
			for _, o := range d.Options {
				if sameValue(o.Value, v) {
					d.Selected = o.Value
					break
				}
			}
			continue
		}
		if cv, ok := coerce(d.Type, v); ok {
			d.Default = cv
		} else {
			d.Default = v
		}
	}
	return out
}

// MergeSchema applies MergeOverrides to both buckets of s.
func MergeSchema(s Schema, existing Parameters) Schema {
	s.Standard = MergeOverrides(s.Standard, existing)
	s.Advanced = MergeOverrides(s.Advanced, existing)
	return s
}

// BuildEffectiveParameters returns values completed with schema defaults for
// every key the user left unset or empty, the same way Validate resolves
// them. Enum defaults resolve to the option value, never its label. values is
// not modified.
func BuildEffectiveParameters(values Parameters, s Schema) Parameters {
	out := make(Parameters, len(values))
	for k, v := range values {
		out[k] = v
	}
	for _, d := range s.Definitions() {
		if v, set := out[d.Key]; set && !isEmpty(v) {
			continue
		}
		if v := d.Resolved(); v != nil {
			out[d.Key] = v
		}
	}
	return out
}

package schema

import (
	"fmt"
	"strconv"
	"strings"
)

func sameValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// isEmpty reports whether v counts as "not supplied". false and 0 are values.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

// coerce converts v, typically a string read back from the backend, into the
// Go shape of t. ok is false when v cannot be represented as t.
func coerce(t Type, v any) (any, bool) {
	switch t {
	case Number:
		return toFloat(v)
	case Boolean:
		switch x := v.(type) {
		case bool:
			return x, true
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			return b, err == nil
		}
		return nil, false
	case TagList:
		switch x := v.(type) {
		case []string:
			return x, true
		case []any:
			out := make([]string, 0, len(x))
			for _, item := range x {
				out = append(out, fmt.Sprint(item))
			}
			return out, true
		case string:
			return splitTags(x), true
		}
		return nil, false
	case Text:
		switch x := v.(type) {
		case string:
			return x, true
		case nil:
			return nil, false
		}
		return fmt.Sprint(v), true
	}
	return v, true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func splitTags(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Encode renders values into the string form the backend stores. Tag lists
// are comma separated; keys unknown to s are passed through with fmt.
func Encode(values Parameters, s Schema) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		d, known := s.Lookup(k)
		if known && d.Type == TagList {
			if tags, ok := coerce(TagList, v); ok {
				out[k] = strings.Join(tags.([]string), ",")
				continue
			}
		}
		if f, ok := v.(float64); ok {
			out[k] = strconv.FormatFloat(f, 'f', -1, 64)
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

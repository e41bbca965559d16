package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ChartPayload is an opaque pre-computed chart (saju or astro). The core never
// computes charts; it only reads documented keys through the accessors below.
// Every accessor returns a zero value on absence or shape mismatch.
type ChartPayload map[string]any

// MapAt returns the nested map at a dotted path, or an empty map.
func (p ChartPayload) MapAt(path string) map[string]any {
	node := p.valueAt(path)
	if m, ok := node.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// StringAt returns the string at a dotted path, or "".
func (p ChartPayload) StringAt(path string) string {
	switch v := p.valueAt(path).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// FloatAt returns the number at a dotted path, or 0.
func (p ChartPayload) FloatAt(path string) float64 {
	switch v := p.valueAt(path).(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// ListAt returns the slice at a dotted path, or nil.
func (p ChartPayload) ListAt(path string) []any {
	if l, ok := p.valueAt(path).([]any); ok {
		return l
	}
	return nil
}

// StringsAt returns the string items of the slice at a dotted path.
func (p ChartPayload) StringsAt(path string) []string {
	items := p.ListAt(path)
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			// common shape: {"name": "..."}
			if name, ok := v["name"].(string); ok {
				out = append(out, name)
			}
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return out
}

// MapsAt returns the map items of the slice at a dotted path.
func (p ChartPayload) MapsAt(path string) []map[string]any {
	items := p.ListAt(path)
	if len(items) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Has reports whether a dotted path resolves to any value.
func (p ChartPayload) Has(path string) bool {
	return p.valueAt(path) != nil
}

func (p ChartPayload) valueAt(path string) any {
	if len(p) == 0 || path == "" {
		return nil
	}
	var node any = map[string]any(p)
	for _, part := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = m[part]
		if !ok {
			return nil
		}
	}
	return node
}

// MapString reads a string field of a raw map, tolerating numbers.
func MapString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// MapFloat reads a numeric field of a raw map.
func MapFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// FormatValue renders an arbitrary payload leaf for signal values.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

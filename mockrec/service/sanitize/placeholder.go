package sanitize

import (
	"maps"
	"sync"
)

// DynamicValues tracks values that differ on every recording, such as generated ids or server
// timestamps, keyed by the field name they appear under. Safe for concurrent use.
type DynamicValues struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewDynamicValues() *DynamicValues {
	return &DynamicValues{values: make(map[string]any)}
}

func (d *DynamicValues) Set(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[key] = value
}

func (d *DynamicValues) Get(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	return v, ok
}

// Snapshot returns a copy of the tracked values.
func (d *DynamicValues) Snapshot() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.values)
}

func (d *DynamicValues) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.values)
}

func (d *DynamicValues) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.values)
}

// ApplyDynamicPlaceholders returns a copy of data where every scalar equal to one of the
// tracked values is replaced by placeholder. data is not modified.
func ApplyDynamicPlaceholders(data any, tracked map[string]any, placeholder string) any {
	if len(tracked) == 0 {
		return data
	}
	return applyPlaceholders(data, tracked, placeholder)
}

func applyPlaceholders(data any, tracked map[string]any, placeholder string) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = applyPlaceholders(item, tracked, placeholder)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = applyPlaceholders(item, tracked, placeholder)
		}
		return out
	case nil:
		return nil
	default:
		for _, t := range tracked {
			if scalarEqual(v, t) {
				return placeholder
			}
		}
		return data
	}
}

// ResolveDynamicPlaceholders returns a copy of data where every placeholder is replaced by the
// value registered for its field name. Placeholders with no field mapping, including array
// elements and a bare top-level placeholder, use values[defaultKey]. Placeholders with
// neither mapping are left in place.
func ResolveDynamicPlaceholders(data any, values map[string]any, placeholder, defaultKey string) any {
	if len(values) == 0 {
		return data
	}
	return resolvePlaceholders(data, "", values, placeholder, defaultKey)
}

func resolvePlaceholders(data any, field string, values map[string]any, placeholder, defaultKey string) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = resolvePlaceholders(item, k, values, placeholder, defaultKey)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolvePlaceholders(item, "", values, placeholder, defaultKey)
		}
		return out
	case string:
		if v != placeholder {
			return v
		}
		if field != "" {
			if resolved, ok := values[field]; ok {
				return resolved
			}
		}
		if resolved, ok := values[defaultKey]; ok {
			return resolved
		}
		return v
	default:
		return data
	}
}

// scalarEqual compares decoded JSON scalars, treating all numeric kinds by value.
func scalarEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

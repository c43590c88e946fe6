package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Attributes is the immutable sample data bag attached to a specimen. Every
// mutating helper returns a fresh copy so two records never share a map.
// The zero value is an empty bag.
type Attributes struct {
	values map[string]any
}

// NewAttributes copies the supplied map into a new bag. Numeric values are
// normalized to int64 or float64 so that stored and decoded bags compare equal.
func NewAttributes(values map[string]any) Attributes {
	if len(values) == 0 {
		return Attributes{}
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = normalizeValue(v)
	}
	return Attributes{values: out}
}

// Get returns the raw value stored under key.
func (a Attributes) Get(key string) (any, bool) {
	v, ok := a.values[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// String returns the value under key rendered as a string, or "" when unset.
func (a Attributes) String(key string) string {
	v, ok := a.values[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// IsSet reports whether key holds a non-empty value.
func (a Attributes) IsSet(key string) bool {
	v, ok := a.values[key]
	return ok && !IsEmptyValue(v)
}

// With returns a copy of the bag with key set to value.
func (a Attributes) With(key string, value any) Attributes {
	out := a.copyMap(1)
	out[key] = normalizeValue(value)
	return Attributes{values: out}
}

// WithValues returns a copy of the bag with every entry of values applied.
func (a Attributes) WithValues(values map[string]any) Attributes {
	if len(values) == 0 {
		return a
	}
	out := a.copyMap(len(values))
	for k, v := range values {
		out[k] = normalizeValue(v)
	}
	return Attributes{values: out}
}

// Without returns a copy of the bag with key removed.
func (a Attributes) Without(key string) Attributes {
	if _, ok := a.values[key]; !ok {
		return a
	}
	out := a.copyMap(0)
	delete(out, key)
	return Attributes{values: out}
}

// Map returns a deep copy of the bag contents.
func (a Attributes) Map() map[string]any {
	return a.copyMap(0)
}

// Keys returns the stored keys in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (a Attributes) Len() int { return len(a.values) }

// Equal reports whether both bags hold the same keys and values.
func (a Attributes) Equal(other Attributes) bool {
	if len(a.values) != len(other.values) {
		return false
	}
	for k, v := range a.values {
		ov, ok := other.values[k]
		if !ok || !ValuesEqual(v, ov) {
			return false
		}
	}
	return true
}

// MarshalJSON renders the bag as a JSON object.
func (a Attributes) MarshalJSON() ([]byte, error) {
	if a.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a.values)
}

// UnmarshalJSON decodes a JSON object, keeping integers exact.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Attributes{}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode sample data: %w", err)
	}
	*a = NewAttributes(raw)
	return nil
}

func (a Attributes) copyMap(extra int) map[string]any {
	out := make(map[string]any, len(a.values)+extra)
	for k, v := range a.values {
		out[k] = cloneValue(v)
	}
	return out
}

// IsEmptyValue reports whether v counts as unset: nil, empty strings, false,
// numeric zero and empty collections.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int64:
		return t == 0
	case float64:
		return t == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return rv.IsZero()
}

// ValuesEqual compares two attribute values after numeric normalization.
func ValuesEqual(a, b any) bool {
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return float64(t)
	case float32:
		return float64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = normalizeValue(inner)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = inner
		}
		return out
	}
	return v
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	}
	return v
}

package persistence

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/hupe1980/gapgo/internal/npy"
)

// JSON decoding turns every number into float64, so entity factories receive
// init_params with float64 where they expect int, and []any where they expect
// typed slices. The helpers below centralize that coercion.

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ToFloat extracts a float64 field from a decoded parameter map.
func ToFloat(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("persistence: missing field %q", key)
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("persistence: field %q is %T, want number", key, v)
	}
	return f, nil
}

// ToInt extracts an integer field. Float values with a fractional part are
// rejected rather than truncated.
func ToInt(m map[string]any, key string) (int, error) {
	f, err := ToFloat(m, key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("persistence: field %q is %s, want integer", key, strconv.FormatFloat(f, 'g', -1, 64))
	}
	return int(f), nil
}

// ToString extracts a string field.
func ToString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("persistence: missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("persistence: field %q is %T, want string", key, v)
	}
	return s, nil
}

// ToBool extracts a boolean field.
func ToBool(m map[string]any, key string) (bool, error) {
	v, ok := m[key]
	if !ok {
		return false, fmt.Errorf("persistence: missing field %q", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("persistence: field %q is %T, want bool", key, v)
	}
	return b, nil
}

// ToFloatSlice extracts a flat []float64 field decoded as []any.
func ToFloatSlice(m map[string]any, key string) ([]float64, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("persistence: missing field %q", key)
	}
	return asFloatSlice(key, v)
}

func asFloatSlice(key string, v any) ([]float64, error) {
	if fs, ok := v.([]float64); ok {
		return fs, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("persistence: field %q is %T, want list of numbers", key, v)
	}
	out := make([]float64, len(list))
	for i, item := range list {
		f, ok := toFloat(item)
		if !ok {
			return nil, fmt.Errorf("persistence: field %q element %d is %T, want number", key, i, item)
		}
		out[i] = f
	}
	return out, nil
}

// ToIntSlice extracts a flat []int field decoded as []any.
func ToIntSlice(m map[string]any, key string) ([]int, error) {
	fs, err := ToFloatSlice(m, key)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(fs))
	for i, f := range fs {
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("persistence: field %q element %d is not an integer", key, i)
		}
		out[i] = int(f)
	}
	return out, nil
}

// ToArray extracts an *npy.Array field, accepting either an already resolved
// array (sidecar or inline) or a raw nested list.
func ToArray(m map[string]any, key string) (*npy.Array, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("persistence: missing field %q", key)
	}
	switch val := v.(type) {
	case *npy.Array:
		return val, nil
	case []any:
		a, err := nestedToArray(val)
		if err != nil {
			return nil, fmt.Errorf("persistence: field %q: %w", key, err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("persistence: field %q is %T, want array", key, v)
	}
}

// ToIntFloatMap extracts a map keyed by integers with float values. JSON
// object keys are strings, so "1": -0.5 style maps decode through here.
func ToIntFloatMap(m map[string]any, key string) (map[int]float64, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("persistence: missing field %q", key)
	}
	if direct, ok := v.(map[int]float64); ok {
		return direct, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("persistence: field %q is %T, want object", key, v)
	}
	out := make(map[int]float64, len(obj))
	for ks, vv := range obj {
		ki, err := strconv.Atoi(ks)
		if err != nil {
			return nil, fmt.Errorf("persistence: field %q key %q is not an integer", key, ks)
		}
		f, ok := toFloat(vv)
		if !ok {
			return nil, fmt.Errorf("persistence: field %q value for %q is %T, want number", key, ks, vv)
		}
		out[ki] = f
	}
	return out, nil
}

// IntFloatMapParam converts an int-keyed map to the string-keyed form used
// inside init_params so it survives a JSON round trip.
func IntFloatMapParam(m map[int]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	return out
}

// IntSliceParam converts []int to []any for use inside init_params.
func IntSliceParam(s []int) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// FloatSliceParam converts []float64 to []any for use inside init_params.
func FloatSliceParam(s []float64) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

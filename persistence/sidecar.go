package persistence

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hupe1980/gapgo/internal/npy"
)

// DefaultArrayThreshold is the array size in bytes above which arrays are
// written as sidecar .npy files instead of being embedded in the record.
const DefaultArrayThreshold = 50 * 1000 * 1000

const inlineArrayTag = "npy"

// Array wraps flat float64 data as an npy array value for use inside
// InitParams/Data maps.
func Array(data []float64, shape ...int) (*npy.Array, error) {
	return npy.NewFloat64(data, shape...)
}

// IntArray wraps flat int64 data as an npy array value.
func IntArray(data []int64, shape ...int) (*npy.Array, error) {
	return npy.NewInt64(data, shape...)
}

func arrayBytes(a *npy.Array) int {
	return a.Len() * 8
}

// externalizeRecord walks the record tree, replacing every *npy.Array value:
// arrays above threshold become sidecar files registered in files and are
// replaced by their relative filename; smaller arrays are embedded as a
// tagged ["npy", nested-list] pair.
//
// base is the record filename without extension; sidecars are named
// <base>-<class>[-<tag>]-<field>.npy after the record that owns the field.
func externalizeRecord(rec *Record, base string, files map[string]func(io.Writer) error, threshold int) error {
	class := strings.ToLower(rec.ClassName)
	if tag, ok := rec.InitParams["tag"].(string); ok {
		class += "-" + tag
	} else if tag, ok := rec.Data["tag"].(string); ok {
		class += "-" + tag
	}
	for _, m := range []map[string]any{rec.InitParams, rec.Data} {
		for field, v := range m {
			ev, err := externalizeValue(v, base, class, field, files, threshold)
			if err != nil {
				return err
			}
			m[field] = ev
		}
	}
	return nil
}

func externalizeValue(v any, base, class, field string, files map[string]func(io.Writer) error, threshold int) (any, error) {
	switch val := v.(type) {
	case *Record:
		if err := externalizeRecord(val, base, files, threshold); err != nil {
			return nil, err
		}
		return val, nil
	case *npy.Array:
		if arrayBytes(val) > threshold {
			name := fmt.Sprintf("%s-%s-%s.npy", base, class, field)
			a := val
			files[name] = func(w io.Writer) error { return npy.Write(w, a) }
			return name, nil
		}
		return []any{inlineArrayTag, arrayToNested(val)}, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			ev, err := externalizeValue(item, base, class, field, files, threshold)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		return v, nil
	}
}

// resolveArrays walks a decoded record tree, turning sidecar filename
// references into memory-mapped arrays and inline tagged pairs back into
// in-memory arrays. dir is the directory of the record file.
func resolveArrays(m map[string]any, dir string) error {
	for k, v := range m {
		rv, err := resolveArrayValue(v, dir)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		m[k] = rv
	}
	return nil
}

func resolveArrayValue(v any, dir string) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if err := resolveArrays(val, dir); err != nil {
			return nil, err
		}
		return val, nil
	case string:
		if strings.HasSuffix(val, ".npy") {
			a, err := npy.OpenMapped(filepath.Join(dir, val))
			if err != nil {
				return nil, fmt.Errorf("opening sidecar %s: %w", val, err)
			}
			return a, nil
		}
		return val, nil
	case []any:
		if len(val) == 2 {
			if tag, ok := val[0].(string); ok && tag == inlineArrayTag {
				return nestedToArray(val[1])
			}
		}
		out := make([]any, len(val))
		for i, item := range val {
			rv, err := resolveArrayValue(item, dir)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// arrayToNested converts an array into nested lists mirroring its shape.
func arrayToNested(a *npy.Array) any {
	var flat []any
	if f := a.Float64(); f != nil {
		flat = make([]any, len(f))
		for i, v := range f {
			flat[i] = v
		}
	} else {
		ints := a.Int64()
		flat = make([]any, len(ints))
		for i, v := range ints {
			flat[i] = v
		}
	}
	return nest(flat, a.Shape())
}

func nest(flat []any, shape []int) any {
	if len(shape) <= 1 {
		return flat
	}
	stride := len(flat) / shape[0]
	out := make([]any, shape[0])
	for i := 0; i < shape[0]; i++ {
		out[i] = nest(flat[i*stride:(i+1)*stride], shape[1:])
	}
	return out
}

// nestedToArray reconstructs a float64 array from nested JSON lists.
// Inline arrays always come back as float64; integer consumers coerce.
func nestedToArray(v any) (*npy.Array, error) {
	var shape []int
	cur := v
	for {
		list, ok := cur.([]any)
		if !ok {
			break
		}
		shape = append(shape, len(list))
		if len(list) == 0 {
			break
		}
		cur = list[0]
	}
	if shape == nil {
		return nil, fmt.Errorf("persistence: inline array payload is not a list")
	}

	n := 1
	for _, s := range shape {
		n *= s
	}
	flat := make([]float64, 0, n)
	var flatten func(any, int) error
	flatten = func(v any, depth int) error {
		if depth == len(shape) {
			f, ok := toFloat(v)
			if !ok {
				return fmt.Errorf("persistence: inline array element %T is not numeric", v)
			}
			flat = append(flat, f)
			return nil
		}
		list, ok := v.([]any)
		if !ok || len(list) != shape[depth] {
			return fmt.Errorf("persistence: ragged inline array")
		}
		for _, item := range list {
			if err := flatten(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := flatten(v, 0); err != nil {
		return nil, err
	}
	return npy.NewFloat64(flat, shape...)
}

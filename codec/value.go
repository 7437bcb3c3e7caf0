package codec

import (
	"bytes"
	"math"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/wI2L/jsondiff"
)

// Marshal encodes a value tree, or any Go value, as JSON.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "failed to marshal json")
	}
	return data, nil
}

// Unmarshal decodes JSON into a value tree. Numbers are kept as json.Number so integer precision
// survives until the walk converts them against a schema.
func Unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal json")
	}
	return v, nil
}

// FromGo converts a Go value into a value tree by way of its JSON encoding.
func FromGo(v any) (any, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Equal reports whether two value trees are structurally equal. Numbers compare by value, so
// int64(1) equals float64(1).
func Equal(a, b Value) bool {
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	if bytes.Equal(left, right) {
		return true
	}
	patch, err := jsondiff.CompareJSON(left, right)
	if err != nil {
		return false
	}
	return len(patch) == 0
}

// copyTree deep copies a value tree, converting numbers to their canonical Go types.
func copyTree(v any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, eris.Errorf("value nested deeper than %d", maxDepth)
	}
	switch tv := v.(type) {
	case nil, bool, string, int64, uint64, float64:
		return tv, nil
	case json.Number:
		if i, err := tv.Int64(); err == nil {
			return i, nil
		}
		if u, err := strconv.ParseUint(tv.String(), 10, 64); err == nil {
			return u, nil
		}
		f, err := tv.Float64()
		if err != nil {
			return nil, eris.Wrapf(err, "invalid number %q", tv.String())
		}
		return f, nil
	case int, int8, int16, int32:
		return toInt64(tv)
	case uint, uint8, uint16, uint32:
		return toUint64(tv)
	case float32:
		return float64(tv), nil
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			cv, err := copyTree(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			cv, err := copyTree(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	default:
		tree, err := FromGo(v)
		if err != nil {
			return nil, err
		}
		return copyTree(tree, depth+1)
	}
}

// Clone deep copies a value tree.
func Clone(v Value) (Value, error) {
	return copyTree(v, 0)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint, uint8, uint16, uint32, uint64:
		u, _ := toUint64(n)
		if u > math.MaxInt64 {
			return 0, eris.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, eris.Errorf("expected integer, got %q", n.String())
			}
			return floatToInt64(f)
		}
		return i, nil
	default:
		return 0, eris.Errorf("expected integer, got %T", v)
	}
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case int, int8, int16, int32, int64:
		i, _ := toInt64(n)
		if i < 0 {
			return 0, eris.Errorf("expected unsigned integer, got %d", i)
		}
		return uint64(i), nil
	case float32, float64:
		f, _ := toFloat64(n)
		if f < 0 || f != math.Trunc(f) || f >= maxUint64Float {
			return 0, eris.Errorf("expected unsigned integer, got %g", f)
		}
		return uint64(f), nil
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return 0, eris.Errorf("expected unsigned integer, got %q", n.String())
		}
		return u, nil
	default:
		return 0, eris.Errorf("expected unsigned integer, got %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int, int8, int16, int32, int64:
		i, _ := toInt64(n)
		return float64(i), nil
	case uint, uint8, uint16, uint32, uint64:
		u, _ := toUint64(n)
		return float64(u), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, eris.Errorf("expected number, got %q", n.String())
		}
		return f, nil
	default:
		return 0, eris.Errorf("expected number, got %T", v)
	}
}

// Exclusive upper bounds of the integer ranges. math.MaxInt64 and math.MaxUint64 round up to these
// when converted to float64.
const (
	maxInt64Float  = float64(1 << 63)
	maxUint64Float = float64(1 << 64)
)

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= maxInt64Float {
		return 0, eris.Errorf("expected integer, got %g", f)
	}
	return int64(f), nil
}

// AsInt64 converts a numeric value tree leaf to int64.
func AsInt64(v any) (int64, error) { return toInt64(v) }

// AsUint64 converts a numeric value tree leaf to uint64.
func AsUint64(v any) (uint64, error) { return toUint64(v) }

// Into converts a value tree into a Go value of type T by way of its JSON encoding.
func Into[T any](v Value) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, eris.Wrap(err, "failed to marshal value")
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, eris.Wrapf(err, "failed to unmarshal value into %T", out)
	}
	return out, nil
}

// JSON <-> record.Value conversion, so this command's users can author
// base records, operation batches and dictionaries as ordinary JSON files
// instead of hand-assembling the wire format (base spec §6 "External
// Interfaces" names a CLI demo as a consumer of the record/update
// packages; it does not mandate a wire format on disk).
package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fiberdb/core/internal/record"
)

// decodeJSONValue turns parsed JSON (via a json.Decoder configured with
// UseNumber, so integers round-trip exactly) into a record.Value.
func decodeJSONValue(v any) (record.Value, error) {
	switch x := v.(type) {
	case nil:
		return record.Nil(), nil
	case bool:
		return record.Bool(x), nil
	case json.Number:
		return decodeJSONNumber(x)
	case string:
		return record.String(x), nil
	case []any:
		elems := make([]record.Value, len(x))
		for i, e := range x {
			ev, err := decodeJSONValue(e)
			if err != nil {
				return record.Value{}, err
			}
			elems[i] = ev
		}
		return record.Array(elems), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := &record.MapValue{Keys: make([]string, 0, len(keys)), Values: make([]record.Value, 0, len(keys))}
		for _, k := range keys {
			ev, err := decodeJSONValue(x[k])
			if err != nil {
				return record.Value{}, err
			}
			m.Keys = append(m.Keys, k)
			m.Values = append(m.Values, ev)
		}
		return record.Map(m), nil
	default:
		return record.Value{}, fmt.Errorf("fiberctl: unsupported JSON value of type %T", v)
	}
}

// decodeJSONNumber prefers a signed 64-bit integer, falling back to a
// float64 for anything with a fraction or exponent; JSON has no native
// decimal/unsigned/binary distinction, so those record kinds are only
// reachable by the update engine's own promotion rules, never directly
// from a JSON literal.
func decodeJSONNumber(n json.Number) (record.Value, error) {
	if i, err := n.Int64(); err == nil {
		return record.Int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return record.Value{}, fmt.Errorf("fiberctl: invalid JSON number %q: %w", n.String(), err)
	}
	return record.Float64(f), nil
}

// encodeJSONValue converts a decoded record.Value back into a plain Go
// value suitable for json.Marshal, for printing apply/check results.
func encodeJSONValue(v record.Value) any {
	switch v.Kind() {
	case record.KindNil:
		return nil
	case record.KindBool:
		return v.Bool()
	case record.KindUint:
		return v.Uint()
	case record.KindInt:
		return v.Int()
	case record.KindFloat32:
		return v.Float32()
	case record.KindFloat64:
		return v.Float64()
	case record.KindString:
		return v.Str()
	case record.KindBinary:
		return v.Bin()
	case record.KindDecimal:
		return v.Dec().String()
	case record.KindArray:
		out := make([]any, len(v.Arr()))
		for i, e := range v.Arr() {
			out[i] = encodeJSONValue(e)
		}
		return out
	case record.KindMap:
		m := v.MapVal()
		out := make(map[string]any, len(m.Keys))
		for i, k := range m.Keys {
			out[k] = encodeJSONValue(m.Values[i])
		}
		return out
	default:
		return nil
	}
}

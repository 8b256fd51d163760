// Package wire defines the loosely-typed value exchanged with the scripting
// boundary: strings, numbers, booleans, null, arrays and string-keyed maps.
// It carries no schema; typed accessors pull fields out of a Map without
// panicking on shape mismatches.
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Map is a wire object. It aliases the natural encoding/json decode target so
// decoded payloads are usable without copying.
type Map = map[string]interface{}

// Array is a wire list.
type Array = []interface{}

// String returns the string stored under key.
func String(m Map, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// Number returns the numeric value stored under key. JSON decoding produces
// float64, but hand-built maps may carry native integer types.
func Number(m Map, key string) (float64, bool) {
	switch n := m[key].(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns the boolean stored under key.
func Bool(m Map, key string) (bool, bool) {
	b, ok := m[key].(bool)
	return b, ok
}

// ChildMap returns the nested map stored under key.
func ChildMap(m Map, key string) (Map, bool) {
	c, ok := m[key].(map[string]interface{})
	return c, ok
}

// ChildMapOr returns the nested map stored under key, or nil when absent.
func ChildMapOr(m Map, key string) Map {
	c, _ := ChildMap(m, key)
	return c
}

// ChildArray returns the nested array stored under key.
func ChildArray(m Map, key string) (Array, bool) {
	a, ok := m[key].([]interface{})
	return a, ok
}

// Strings converts a wire array to a string slice. Any non-string element is
// an error, not a silent skip.
func Strings(a Array) ([]string, error) {
	out := make([]string, 0, len(a))
	for i, v := range a {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("index %d is not a string: %v", i, v)
		}
		out = append(out, s)
	}
	return out, nil
}

// Stringify renders any wire value in its fixed, locale-independent textual
// form. Every wire type maps to some string: scalars via strconv, null to
// "null", maps and arrays to their canonical JSON text.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case json.Number:
		return t.String()
	default:
		// Maps and arrays. encoding/json sorts map keys, so the text is
		// stable across runs.
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

package enrollment

import (
	"encoding/json"
	"strconv"
)

// IsEmpty reports whether a submitted value must not overwrite a stored one:
// nil, "", numeric zero, or the literal string "null".
// Booleans are never empty.
func IsEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == "" || x == "null"
	case float64:
		return x == 0
	case float32:
		return x == 0
	case int:
		return x == 0
	case int32:
		return x == 0
	case int64:
		return x == 0
	case uint:
		return x == 0
	case uint32:
		return x == 0
	case uint64:
		return x == 0
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		return err == nil && f == 0
	}
	return false
}

// Merge copies existing and then applies every non-empty incoming value.
// Keys are only ever added or replaced, never removed or blanked.
func Merge(existing, incoming map[string]interface{}) map[string]interface{} {
	out := copyFields(existing)
	for k, v := range incoming {
		if IsEmpty(v) {
			continue
		}
		out[k] = v
	}
	return out
}

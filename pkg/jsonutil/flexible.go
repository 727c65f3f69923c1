package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// CellText renders a decoded JSON scalar the way it is displayed in a preview
// table. Null and absent values render as the empty string; whole floats
// render without a fractional part so 42.0 prints as "42".
func CellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return CellText(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.RawMessage:
		return FlexibleStringValue(val)
	default:
		// Nested objects and arrays are shown as compact JSON.
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// FlexibleStringValue converts a json.RawMessage to a string, handling cases
// where the backend returns numbers or booleans instead of strings.
// Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal json.Number
	if err := Decode(raw, &numVal); err == nil {
		return numVal.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	return string(raw)
}

// Decode unmarshals data with UseNumber so integer cell values keep their
// exact digits instead of passing through float64.
func Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

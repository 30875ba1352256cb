package qti

import (
	"fmt"
	"strconv"
)

// Value is a QTI response-variable value as delivered by the item runner:
// either a single base value ({"base":{"identifier":"choice_2"}}) or a list
// ({"list":{"identifier":["choice_1","choice_3"]}}). The inner key is the
// QTI baseType; only the value matters for routing.
type Value struct {
	Base map[string]interface{}   `json:"base,omitempty"`
	List map[string][]interface{} `json:"list,omitempty"`
}

// ResponseSet maps response-variable identifiers (e.g. "RESPONSE") to values.
type ResponseSet map[string]Value

// Contains reports whether the value equals (base) or includes (list) the
// given literal. Comparison is string-based across baseTypes, so numeric
// responses match their decimal rendering.
func (v Value) Contains(literal string) bool {
	for _, raw := range v.Base {
		if stringify(raw) == literal {
			return true
		}
	}
	for _, raws := range v.List {
		for _, raw := range raws {
			if stringify(raw) == literal {
				return true
			}
		}
	}
	return false
}

// Empty reports whether the value carries no usable payload.
func (v Value) Empty() bool {
	return len(v.Base) == 0 && len(v.List) == 0
}

func stringify(raw interface{}) string {
	switch x := raw.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		// JSON numbers decode as float64; render integers without exponent.
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

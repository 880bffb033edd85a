package validation

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Limits bounds the shape of a published payload. Courier does not understand
// event semantics; these are the only checks applied to publisher data.
type Limits struct {
	MaxMessageSize  int // bytes of the encoded payload
	MaxStringLength int // characters (runes) per string field
	MaxArraySize    int // elements per array field
}

// DefaultLimits returns the stock payload bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxMessageSize:  1048576,
		MaxStringLength: 10000,
		MaxArraySize:    1000,
	}
}

// ValidateMessage checks a decoded JSON object against the limits and returns
// the accumulated list of violations. An empty slice means the payload is
// acceptable. Checks recurse into nested objects and into array elements that
// are themselves objects.
func (l Limits) ValidateMessage(data map[string]interface{}) []string {
	var errs []string

	if len(data) == 0 {
		errs = append(errs, "message data must be a non-empty JSON object")
		return errs
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		errs = append(errs, fmt.Sprintf("message is not JSON-encodable: %v", err))
		return errs
	}
	if l.MaxMessageSize > 0 && len(encoded) > l.MaxMessageSize {
		errs = append(errs, fmt.Sprintf("message size %d exceeds max size %d bytes", len(encoded), l.MaxMessageSize))
	}

	l.checkFields("", data, &errs)
	return errs
}

func (l Limits) checkFields(prefix string, obj map[string]interface{}, errs *[]string) {
	for key, value := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		l.checkValue(path, value, errs)
	}
}

func (l Limits) checkValue(path string, value interface{}, errs *[]string) {
	switch v := value.(type) {
	case string:
		if l.MaxStringLength > 0 && utf8.RuneCountInString(v) > l.MaxStringLength {
			*errs = append(*errs, fmt.Sprintf("field %q exceeds max string length %d", path, l.MaxStringLength))
		}
	case []interface{}:
		if l.MaxArraySize > 0 && len(v) > l.MaxArraySize {
			*errs = append(*errs, fmt.Sprintf("field %q exceeds max array size %d", path, l.MaxArraySize))
		}
		for i, elem := range v {
			if nested, ok := elem.(map[string]interface{}); ok {
				l.checkFields(fmt.Sprintf("%s[%d]", path, i), nested, errs)
			}
		}
	case map[string]interface{}:
		l.checkFields(path, v, errs)
	}
}

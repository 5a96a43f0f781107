package extraction

import (
	"encoding/json"
	"strconv"
	"strings"
)

// CleanNumber coerces an extracted value to a float. Numeric types pass
// through; strings are assumed locale-formatted with '.' as thousands
// separator and ',' as decimal separator ("1.500,00" -> 1500.0). Returns
// nil for nil input or anything that does not parse.
func CleanNumber(v interface{}) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return &f
		}
		return nil
	case string:
		return cleanNumericString(n)
	default:
		return nil
	}
}

func cleanNumericString(s string) *float64 {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	var sb strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			sb.WriteRune(r)
		}
	}

	cleaned := sb.String()
	if cleaned == "" {
		return nil
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

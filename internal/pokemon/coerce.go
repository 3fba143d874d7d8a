package pokemon

// coerce.go converts raw cell and patch values into the three value kinds a
// record understands: text, number (float64) and boolean.
//
// Coercion never fails. Values that cannot be read as the requested kind
// degrade to a safe default:
//   - number: 0 for anything that is not a finite decimal number
//   - boolean: true only for "true", "1" or "yes" (case-insensitive)
//   - string: the value's canonical text form

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// CoercionType is the declared target type of an import mapping.
type CoercionType string

const (
	CoerceString  CoercionType = "string"
	CoerceNumber  CoercionType = "number"
	CoerceBoolean CoercionType = "boolean"
)

// numericRegex validates that a string is a plain decimal number.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// typeSeparators splits a tag cell such as "Fire, Flying" or "Fire/Flying".
var typeSeparators = regexp.MustCompile(`[,/]`)

// ParseCoercionType validates a mapping type name.
// An empty name defaults to string.
func ParseCoercionType(s string) (CoercionType, error) {
	switch CoercionType(strings.ToLower(strings.TrimSpace(s))) {
	case "", CoerceString, "text":
		return CoerceString, nil
	case CoerceNumber:
		return CoerceNumber, nil
	case CoerceBoolean, "bool":
		return CoerceBoolean, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Coerce converts v to the given type.
func Coerce(v any, t CoercionType) any {
	switch t {
	case CoerceNumber:
		return ToNumber(v)
	case CoerceBoolean:
		return ToBool(v)
	default:
		return ToText(v)
	}
}

// ToNumber converts v to a float64. Non-numeric input yields 0.
func ToNumber(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if !numericRegex.MatchString(s) {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return ToNumber(ToText(v))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ToBool converts v to a boolean. Booleans pass through unchanged.
func ToBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(ToText(v))) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// ToText returns the canonical text form of v.
// Whole floats print without a fractional part so that 7.0 becomes "7".
func ToText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case []string:
		return strings.Join(x, ", ")
	default:
		return fmt.Sprint(x)
	}
}

// SplitTypes splits an imported tag cell on commas or slashes, trimming and
// lower-casing each piece and dropping empty ones.
func SplitTypes(s string) []string {
	return splitTags(s, strings.ToLower)
}

// SplitTags splits like SplitTypes but keeps each piece's case. Edits use
// it so a tag string and a tag list store the same values.
func SplitTags(s string) []string {
	return splitTags(s, nil)
}

func splitTags(s string, fold func(string) string) []string {
	parts := typeSeparators.Split(s, -1)
	types := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if fold != nil {
			p = fold(p)
		}
		if p != "" {
			types = append(types, p)
		}
	}
	return types
}

// normalizeValue narrows v to one of the stored kinds: string, float64 or bool.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case string, float64, bool:
		return x
	case nil:
		return ""
	case int, int64, int32, float32:
		return ToNumber(x)
	default:
		return ToText(x)
	}
}

package pokemon

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidColumn is returned when a column name derives an empty identifier.
	ErrInvalidColumn = errors.New("invalid column name")

	// ErrUnknownType is returned for column or mapping types outside text/number/boolean.
	ErrUnknownType = errors.New("unknown column type")
)

// ColumnType is the declared type of a custom column.
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnNumber  ColumnType = "number"
	ColumnBoolean ColumnType = "boolean"
)

var (
	whitespaceRun = regexp.MustCompile(`[\s\p{Zs}]+`)
	nonIDChars    = regexp.MustCompile(`[^a-z0-9_]`)
)

// Column is one user-defined entry of the column schema.
type Column struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Type    ColumnType `json:"type"`
	Default any        `json:"defaultValue"`
}

// ParseColumnType validates a column type name.
func ParseColumnType(s string) (ColumnType, error) {
	switch ColumnType(strings.ToLower(strings.TrimSpace(s))) {
	case ColumnText, "string":
		return ColumnText, nil
	case ColumnNumber:
		return ColumnNumber, nil
	case ColumnBoolean, "bool":
		return ColumnBoolean, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Default returns the zero value for the type: "", 0 or false.
func (t ColumnType) Default() any {
	switch t {
	case ColumnNumber:
		return float64(0)
	case ColumnBoolean:
		return false
	default:
		return ""
	}
}

// Coercion returns the coercion applied to values stored in a column of this type.
func (t ColumnType) Coercion() CoercionType {
	switch t {
	case ColumnNumber:
		return CoerceNumber
	case ColumnBoolean:
		return CoerceBoolean
	default:
		return CoerceString
	}
}

// ColumnTypeFor maps an import coercion type onto a column type.
func ColumnTypeFor(c CoercionType) ColumnType {
	switch c {
	case CoerceNumber:
		return ColumnNumber
	case CoerceBoolean:
		return ColumnBoolean
	default:
		return ColumnText
	}
}

// ColumnID derives a column identifier from a display name:
// lower-cased, whitespace runs replaced by "_", and every character
// outside [a-z0-9_] removed.
//
//	ColumnID("Legendary Status") == "legendary_status"
//	ColumnID("Gen #")            == "gen_"
func ColumnID(name string) string {
	id := strings.ToLower(name)
	id = whitespaceRun.ReplaceAllString(id, "_")
	return nonIDChars.ReplaceAllString(id, "")
}

// NewColumn builds a schema entry with the identifier and default value
// derived from name and t.
func NewColumn(name string, t ColumnType) (Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Column{}, fmt.Errorf("%w: name is empty", ErrInvalidColumn)
	}
	if _, err := ParseColumnType(string(t)); err != nil {
		return Column{}, err
	}
	id := ColumnID(name)
	if id == "" {
		return Column{}, fmt.Errorf("%w: %q has no usable characters", ErrInvalidColumn, name)
	}
	return Column{
		ID:      id,
		Name:    name,
		Type:    t,
		Default: t.Default(),
	}, nil
}

// Coerce converts v to the column's declared type.
func (c Column) Coerce(v any) any {
	return Coerce(v, c.Type.Coercion())
}

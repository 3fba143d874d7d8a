// Package pokemon defines the record model shared by the API fetcher, the
// CSV pipeline and the record store.
//
// A Record is a fixed set of Pokémon attributes plus an Extra side-map that
// holds the values of user-defined columns. Extra values are always one of
// string, float64 or bool.
package pokemon

import (
	"encoding/json"
	"math"
	"strings"
)

// Base field names. These are the names used by import mappings, record
// patches and the export header.
const (
	FieldID             = "id"
	FieldName           = "name"
	FieldSprite         = "sprite"
	FieldTypes          = "types"
	FieldHP             = "hp"
	FieldAttack         = "attack"
	FieldDefense        = "defense"
	FieldSpecialAttack  = "specialAttack"
	FieldSpecialDefense = "specialDefense"
	FieldSpeed          = "speed"
	FieldHeight         = "height"
	FieldWeight         = "weight"
)

// DefaultName is assigned to imported records with no mapped name.
const DefaultName = "Unknown"

// BaseFields lists the fixed fields in export order.
var BaseFields = []string{
	FieldID, FieldName, FieldSprite, FieldTypes,
	FieldHP, FieldAttack, FieldDefense, FieldSpecialAttack, FieldSpecialDefense, FieldSpeed,
	FieldHeight, FieldWeight,
}

var baseFieldSet = func() map[string]bool {
	m := make(map[string]bool, len(BaseFields))
	for _, f := range BaseFields {
		m[f] = true
	}
	return m
}()

// IsBaseField reports whether name is one of the fixed record fields.
func IsBaseField(name string) bool {
	return baseFieldSet[name]
}

// IsNumericField reports whether name is a fixed integer field.
func IsNumericField(name string) bool {
	return IsBaseField(name) && name != FieldName && name != FieldSprite && name != FieldTypes
}

// Record is one row of the data table.
type Record struct {
	ID             int
	Name           string
	Sprite         *string
	Types          []string
	HP             int
	Attack         int
	Defense        int
	SpecialAttack  int
	SpecialDefense int
	Speed          int
	Height         int
	Weight         int

	// Extra holds custom column values keyed by column ID.
	Extra map[string]any
}

// NewRecord returns a record seeded with import defaults.
func NewRecord(id int) Record {
	return Record{
		ID:    id,
		Name:  DefaultName,
		Types: []string{},
	}
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	c := r
	if r.Sprite != nil {
		s := *r.Sprite
		c.Sprite = &s
	}
	if r.Types != nil {
		c.Types = append(make([]string, 0, len(r.Types)), r.Types...)
	}
	if r.Extra != nil {
		c.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// intField returns a pointer to the named integer field, or nil.
func (r *Record) intField(name string) *int {
	switch name {
	case FieldID:
		return &r.ID
	case FieldHP:
		return &r.HP
	case FieldAttack:
		return &r.Attack
	case FieldDefense:
		return &r.Defense
	case FieldSpecialAttack:
		return &r.SpecialAttack
	case FieldSpecialDefense:
		return &r.SpecialDefense
	case FieldSpeed:
		return &r.Speed
	case FieldHeight:
		return &r.Height
	case FieldWeight:
		return &r.Weight
	}
	return nil
}

// Set assigns v to the named field. Base fields coerce v to their own type
// (numbers truncate toward zero and saturate at the int range); any other
// name is stored in Extra as-is after narrowing to string, float64 or bool.
func (r *Record) Set(field string, v any) {
	if p := r.intField(field); p != nil {
		*p = toInt(ToNumber(v))
		return
	}

	switch field {
	case FieldName:
		r.Name = ToText(v)
	case FieldSprite:
		s := strings.TrimSpace(ToText(v))
		if s == "" {
			r.Sprite = nil
		} else {
			r.Sprite = &s
		}
	case FieldTypes:
		r.Types = toTypes(v)
	default:
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[field] = normalizeValue(v)
	}
}

// Get returns the value of the named field. Integer fields are returned as
// int, sprite as string ("" when unset), types as a copy of the tag list.
func (r Record) Get(field string) (any, bool) {
	if p := r.intField(field); p != nil {
		return *p, true
	}
	switch field {
	case FieldName:
		return r.Name, true
	case FieldSprite:
		if r.Sprite == nil {
			return "", true
		}
		return *r.Sprite, true
	case FieldTypes:
		return append([]string{}, r.Types...), true
	}
	v, ok := r.Extra[field]
	return v, ok
}

// Map flattens the record into a single map, base fields and Extra alike.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(BaseFields)+len(r.Extra))
	for k, v := range r.Extra {
		m[k] = v
	}
	for _, f := range BaseFields {
		v, _ := r.Get(f)
		m[f] = v
	}
	if r.Sprite == nil {
		m[FieldSprite] = nil
	}
	return m
}

// MarshalJSON encodes the record as one flat object, the way the table
// view consumes it.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// UnmarshalJSON decodes a flat object. Unknown keys land in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = Record{Types: []string{}}
	for k, v := range m {
		r.Set(k, v)
	}
	return nil
}

// toInt truncates f toward zero, saturating outside the int range.
func toInt(f float64) int {
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

// toTypes converts a tag value into an ordered tag list.
func toTypes(v any) []string {
	switch x := v.(type) {
	case nil:
		return []string{}
	case []string:
		return append([]string{}, x...)
	case []any:
		types := make([]string, 0, len(x))
		for _, item := range x {
			if s := strings.TrimSpace(ToText(item)); s != "" {
				types = append(types, s)
			}
		}
		return types
	case string:
		return SplitTags(x)
	default:
		return SplitTags(ToText(x))
	}
}

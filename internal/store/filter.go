package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/pokelab/internal/pokemon"
)

// ErrInvalidFilter is returned for filters with no field or an unknown operator.
var ErrInvalidFilter = errors.New("invalid filter")

// FilterOperator is a comparison operator for record filters.
type FilterOperator string

const (
	OpEquals    FilterOperator = "eq"
	OpNotEquals FilterOperator = "ne"
	OpGreater   FilterOperator = "gt"
	OpGreaterEq FilterOperator = "gte"
	OpLess      FilterOperator = "lt"
	OpLessEq    FilterOperator = "lte"
	OpContains  FilterOperator = "contains"
)

// Filter is a single condition on one field. Filters in a slice are
// combined with AND logic.
type Filter struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"op"`
	Value    any            `json:"value"`
}

// Match compiles filters into a Predicate. No filters matches every record.
func Match(filters ...Filter) (Predicate, error) {
	for _, f := range filters {
		if f.Field == "" {
			return nil, fmt.Errorf("%w: missing field", ErrInvalidFilter)
		}
		switch f.Operator {
		case OpEquals, OpNotEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq, OpContains:
		default:
			return nil, fmt.Errorf("%w: operator %q", ErrInvalidFilter, f.Operator)
		}
	}
	return func(r pokemon.Record) bool {
		for _, f := range filters {
			if !f.matches(r) {
				return false
			}
		}
		return true
	}, nil
}

func (f Filter) matches(r pokemon.Record) bool {
	v, ok := r.Get(f.Field)
	if !ok {
		return false
	}

	if f.Operator == OpContains {
		needle := strings.ToLower(pokemon.ToText(f.Value))
		return strings.Contains(strings.ToLower(pokemon.ToText(v)), needle)
	}

	if tags, ok := v.([]string); ok && (f.Operator == OpEquals || f.Operator == OpNotEquals) {
		want := strings.ToLower(pokemon.ToText(f.Value))
		found := false
		for _, t := range tags {
			if strings.ToLower(t) == want {
				found = true
				break
			}
		}
		return found == (f.Operator == OpEquals)
	}

	var cmp int
	switch v.(type) {
	case int, float64:
		cmp = compareNumbers(pokemon.ToNumber(v), pokemon.ToNumber(f.Value))
	case bool:
		cmp = compareValues(v, pokemon.ToBool(f.Value))
	default:
		cmp = strings.Compare(strings.ToLower(pokemon.ToText(v)), strings.ToLower(pokemon.ToText(f.Value)))
	}

	switch f.Operator {
	case OpEquals:
		return cmp == 0
	case OpNotEquals:
		return cmp != 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEq:
		return cmp >= 0
	case OpLess:
		return cmp < 0
	case OpLessEq:
		return cmp <= 0
	}
	return false
}

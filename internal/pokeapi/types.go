package pokeapi

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JonMunkholm/pokelab/internal/pokemon"
)

// Stat names as they appear in detail responses.
const (
	StatHP             = "hp"
	StatAttack         = "attack"
	StatDefense        = "defense"
	StatSpecialAttack  = "special-attack"
	StatSpecialDefense = "special-defense"
	StatSpeed          = "speed"
)

// Entry is one item of the catalog listing.
type Entry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Ref returns the path segment used to request the entry's details: its
// name, or the last segment of its URL when the name is empty.
func (e Entry) Ref() string {
	if e.Name != "" {
		return e.Name
	}
	trimmed := strings.TrimRight(e.URL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// ListResponse is the catalog listing body.
type ListResponse struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Entry `json:"results"`
}

// NamedRef is PokeAPI's {name, url} resource pointer.
type NamedRef struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// DetailResponse is the subset of the detail body the transform reads.
type DetailResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Height  int    `json:"height"`
	Weight  int    `json:"weight"`
	Sprites struct {
		FrontDefault *string `json:"front_default"`
	} `json:"sprites"`
	Types []struct {
		Slot int      `json:"slot"`
		Type NamedRef `json:"type"`
	} `json:"types"`
	Stats []struct {
		BaseStat int      `json:"base_stat"`
		Stat     NamedRef `json:"stat"`
	} `json:"stats"`
}

// stat returns the base value of the named stat, or 0 when absent.
func (d DetailResponse) stat(name string) int {
	for _, s := range d.Stats {
		if s.Stat.Name == name {
			return s.BaseStat
		}
	}
	return 0
}

// Transform flattens a detail response into a record.
func Transform(d DetailResponse) pokemon.Record {
	types := make([]string, 0, len(d.Types))
	for _, t := range d.Types {
		types = append(types, t.Type.Name)
	}

	var sprite *string
	if d.Sprites.FrontDefault != nil && *d.Sprites.FrontDefault != "" {
		s := *d.Sprites.FrontDefault
		sprite = &s
	}

	return pokemon.Record{
		ID:             d.ID,
		Name:           capitalize(d.Name),
		Sprite:         sprite,
		Types:          types,
		HP:             d.stat(StatHP),
		Attack:         d.stat(StatAttack),
		Defense:        d.stat(StatDefense),
		SpecialAttack:  d.stat(StatSpecialAttack),
		SpecialDefense: d.stat(StatSpecialDefense),
		Speed:          d.stat(StatSpeed),
		Height:         d.Height,
		Weight:         d.Weight,
	}
}

// capitalize upper-cases the first rune and leaves the rest untouched.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

package pokeapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform(t *testing.T) {
	var d DetailResponse
	require.NoError(t, json.Unmarshal([]byte(detailJSON(1, "bulbasaur")), &d))

	r := Transform(d)

	assert.Equal(t, 1, r.ID)
	assert.Equal(t, "Bulbasaur", r.Name)
	require.NotNil(t, r.Sprite)
	assert.Equal(t, "https://img.example/1.png", *r.Sprite)
	assert.Equal(t, []string{"grass", "poison"}, r.Types)
	assert.Equal(t, 45, r.HP)
	assert.Equal(t, 49, r.Attack)
	assert.Equal(t, 65, r.SpecialAttack)
	assert.Equal(t, 7, r.Height)
	assert.Equal(t, 69, r.Weight)

	// Stats missing from the payload default to zero.
	assert.Zero(t, r.Defense)
	assert.Zero(t, r.SpecialDefense)
	assert.Zero(t, r.Speed)
}

func TestTransformNullSprite(t *testing.T) {
	var d DetailResponse
	require.NoError(t, json.Unmarshal([]byte(`{"id": 10001, "name": "deoxys-attack", "sprites": {"front_default": null}}`), &d))

	r := Transform(d)
	assert.Nil(t, r.Sprite)
	assert.Equal(t, "Deoxys-attack", r.Name)
	assert.NotNil(t, r.Types)
	assert.Empty(t, r.Types)
}

func TestEntryRef(t *testing.T) {
	assert.Equal(t, "pikachu", Entry{Name: "pikachu", URL: "https://x/pokemon/25/"}.Ref())
	assert.Equal(t, "25", Entry{URL: "https://x/pokemon/25/"}.Ref())
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "", capitalize(""))
	assert.Equal(t, "Mr. mime", capitalize("mr. mime"))
	assert.Equal(t, "Éclair", capitalize("éclair"))
}

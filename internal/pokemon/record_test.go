package pokemon

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnID(t *testing.T) {
	assert.Equal(t, "legendary_status", ColumnID("Legendary Status"))
	assert.Equal(t, "gen_", ColumnID("Gen #"))
	assert.Equal(t, "tier_list_2", ColumnID("Tier\tList  2"))
	assert.Equal(t, "", ColumnID("!!!"))
}

func TestNewColumn(t *testing.T) {
	t.Run("defaults follow the type", func(t *testing.T) {
		text, err := NewColumn("Notes", ColumnText)
		require.NoError(t, err)
		assert.Equal(t, "", text.Default)

		num, err := NewColumn("Generation", ColumnNumber)
		require.NoError(t, err)
		assert.Equal(t, float64(0), num.Default)

		flag, err := NewColumn("Legendary", ColumnBoolean)
		require.NoError(t, err)
		assert.Equal(t, false, flag.Default)
		assert.Equal(t, "legendary", flag.ID)
		assert.Equal(t, "Legendary", flag.Name)
	})

	t.Run("rejects names without identifier characters", func(t *testing.T) {
		_, err := NewColumn("???", ColumnText)
		assert.ErrorIs(t, err, ErrInvalidColumn)

		_, err = NewColumn("   ", ColumnText)
		assert.ErrorIs(t, err, ErrInvalidColumn)
	})

	t.Run("rejects unknown types", func(t *testing.T) {
		_, err := NewColumn("When", ColumnType("date"))
		assert.ErrorIs(t, err, ErrUnknownType)
	})
}

func TestRecordSet(t *testing.T) {
	r := NewRecord(3)
	assert.Equal(t, DefaultName, r.Name)
	assert.Empty(t, r.Types)

	r.Set(FieldHP, "120")
	r.Set(FieldAttack, 55.9)
	r.Set(FieldName, 42)
	r.Set(FieldTypes, "Fire/Flying")
	r.Set(FieldSprite, "https://img/6.png")
	r.Set("legendary", true)
	r.Set("generation", 1)

	assert.Equal(t, 120, r.HP)
	assert.Equal(t, 55, r.Attack)
	assert.Equal(t, "42", r.Name)
	assert.Equal(t, []string{"Fire", "Flying"}, r.Types)
	require.NotNil(t, r.Sprite)
	assert.Equal(t, "https://img/6.png", *r.Sprite)
	assert.Equal(t, true, r.Extra["legendary"])
	assert.Equal(t, float64(1), r.Extra["generation"])

	r.Set(FieldSprite, "")
	assert.Nil(t, r.Sprite)
}

func TestRecordSetTypesShapesAgree(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"string", "Water"},
		{"string list", []string{"Water"}},
		{"json list", []any{"Water"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecord(1)
			r.Set(FieldTypes, tt.value)
			assert.Equal(t, []string{"Water"}, r.Types)
		})
	}

	r := NewRecord(1)
	r.Set(FieldTypes, " Fire , / Flying ")
	assert.Equal(t, []string{"Fire", "Flying"}, r.Types)
}

func TestRecordSetClampsOutOfRangeNumbers(t *testing.T) {
	r := NewRecord(1)

	r.Set(FieldHP, 1e30)
	assert.Equal(t, math.MaxInt, r.HP)

	r.Set(FieldAttack, "-1e30")
	assert.Equal(t, math.MinInt, r.Attack)

	r.Set(FieldSpeed, math.Inf(1))
	assert.Equal(t, 0, r.Speed)

	r.Set(FieldDefense, math.NaN())
	assert.Equal(t, 0, r.Defense)

	r.Set(FieldWeight, 69.9)
	assert.Equal(t, 69, r.Weight)
}

func TestRecordCloneIsDeep(t *testing.T) {
	sprite := "a.png"
	r := Record{ID: 1, Sprite: &sprite, Types: []string{"grass"}, Extra: map[string]any{"tier": "S"}}

	c := r.Clone()
	*c.Sprite = "b.png"
	c.Types[0] = "poison"
	c.Extra["tier"] = "A"

	assert.Equal(t, "a.png", *r.Sprite)
	assert.Equal(t, "grass", r.Types[0])
	assert.Equal(t, "S", r.Extra["tier"])
}

func TestRecordJSON(t *testing.T) {
	sprite := "https://img/25.png"
	r := Record{
		ID: 25, Name: "Pikachu", Sprite: &sprite, Types: []string{"electric"},
		HP: 35, Speed: 90, Height: 4, Weight: 60,
		Extra: map[string]any{"legendary": false},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "Pikachu", flat["name"])
	assert.Equal(t, float64(90), flat["speed"])
	assert.Equal(t, false, flat["legendary"])

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.ID, back.ID)
	assert.Equal(t, r.Types, back.Types)
	assert.Equal(t, *r.Sprite, *back.Sprite)
	assert.Equal(t, false, back.Extra["legendary"])
}

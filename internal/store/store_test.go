package store

import (
	"sync"
	"testing"

	"github.com/JonMunkholm/pokelab/internal/pokemon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []pokemon.Record {
	return []pokemon.Record{
		{ID: 1, Name: "Bulbasaur", Types: []string{"grass", "poison"}, HP: 45, Speed: 45},
		{ID: 4, Name: "Charmander", Types: []string{"fire"}, HP: 39, Speed: 65},
		{ID: 143, Name: "Snorlax", Types: []string{"normal"}, HP: 160, Speed: 30},
		{ID: 242, Name: "Blissey", Types: []string{"normal"}, HP: 255, Speed: 55},
	}
}

func mustColumn(t *testing.T, name string, typ pokemon.ColumnType) pokemon.Column {
	t.Helper()
	col, err := pokemon.NewColumn(name, typ)
	require.NoError(t, err)
	return col
}

func TestReplaceAllClearsError(t *testing.T) {
	s := New()
	s.SetError("fetch failed")
	s.ReplaceAll(sample())

	assert.Equal(t, 4, s.Len())
	assert.Empty(t, s.Err())
}

func TestReplaceAllConformsToSchema(t *testing.T) {
	s := New()
	require.NoError(t, s.AddColumn(mustColumn(t, "Legendary", pokemon.ColumnBoolean)))

	in := sample()
	in[0].Extra = map[string]any{"legendary": "yes", "stray": 1.0}
	s.ReplaceAll(in)

	got := s.Records()
	assert.Equal(t, map[string]any{"legendary": true}, got[0].Extra)
	assert.Equal(t, map[string]any{"legendary": false}, got[1].Extra)
}

func TestInsertAllowsDuplicateIDs(t *testing.T) {
	s := New()
	s.Insert(pokemon.Record{ID: 7, Name: "Squirtle"})
	s.Insert(pokemon.Record{ID: 7, Name: "Squirtle copy"})

	require.Equal(t, 2, s.Len())

	found, err := s.Update(7, Patch{"name": "Renamed"})
	require.NoError(t, err)
	assert.True(t, found)

	got := s.Records()
	assert.Equal(t, "Renamed", got[0].Name)
	assert.Equal(t, "Squirtle copy", got[1].Name)

	assert.Equal(t, 2, s.Remove(7))
	assert.Equal(t, 0, s.Len())
}

func TestUpdate(t *testing.T) {
	s := New()
	s.ReplaceAll(sample())
	require.NoError(t, s.AddColumn(mustColumn(t, "Generation", pokemon.ColumnNumber)))

	t.Run("merges and coerces", func(t *testing.T) {
		found, err := s.Update(4, Patch{"hp": "44", "generation": "1", "types": "Fire/Dragon"})
		require.NoError(t, err)
		require.True(t, found)

		r := s.Records()[1]
		assert.Equal(t, 44, r.HP)
		assert.Equal(t, float64(1), r.Extra["generation"])
		assert.Equal(t, []string{"Fire", "Dragon"}, r.Types)
		assert.Equal(t, "Charmander", r.Name)
	})

	t.Run("missing id is a no-op", func(t *testing.T) {
		found, err := s.Update(999, Patch{"hp": 1})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		_, err := s.Update(4, Patch{"nickname": "Char"})
		assert.ErrorIs(t, err, ErrUnknownField)
	})
}

func TestClearEmptiesRecordsAndSchema(t *testing.T) {
	s := New()
	s.ReplaceAll(sample())
	require.NoError(t, s.AddColumn(mustColumn(t, "Notes", pokemon.ColumnText)))
	s.SetError("boom")

	s.Clear()

	state := s.State()
	assert.Equal(t, 0, state.Records)
	assert.Empty(t, state.Columns)
	assert.Empty(t, state.Error)
}

func TestAddColumn(t *testing.T) {
	s := New()
	s.ReplaceAll(sample())

	col := mustColumn(t, "Legendary Status", pokemon.ColumnBoolean)
	require.NoError(t, s.AddColumn(col))

	for _, r := range s.Records() {
		assert.Equal(t, false, r.Extra["legendary_status"], "record %d", r.ID)
	}

	t.Run("duplicate id is rejected and schema unchanged", func(t *testing.T) {
		err := s.AddColumn(mustColumn(t, "legendary status", pokemon.ColumnText))
		assert.ErrorIs(t, err, ErrColumnExists)
		assert.Len(t, s.Columns(), 1)
		assert.Equal(t, pokemon.ColumnBoolean, s.Columns()[0].Type)
	})

	t.Run("base field collision is rejected", func(t *testing.T) {
		err := s.AddColumn(mustColumn(t, "HP", pokemon.ColumnNumber))
		assert.ErrorIs(t, err, ErrColumnExists)
	})

	t.Run("records inserted later get the default", func(t *testing.T) {
		stored := s.Insert(pokemon.Record{ID: 150, Name: "Mewtwo", Extra: map[string]any{"stray": 1.0}})
		assert.Equal(t, map[string]any{"legendary_status": false}, stored.Extra)
		assert.Equal(t, []string{}, stored.Types)

		got := s.Records()
		assert.Equal(t, stored, got[len(got)-1])

		stored.Extra["legendary_status"] = true
		assert.Equal(t, false, s.Records()[len(got)-1].Extra["legendary_status"], "returned record is a copy")
	})
}

func TestRemoveColumn(t *testing.T) {
	s := New()
	s.ReplaceAll(sample())
	require.NoError(t, s.AddColumn(mustColumn(t, "Tier", pokemon.ColumnText)))
	require.NoError(t, s.AddColumn(mustColumn(t, "Rank", pokemon.ColumnNumber)))

	assert.True(t, s.RemoveColumn("tier"))
	assert.False(t, s.RemoveColumn("tier"), "second removal is a no-op")
	assert.False(t, s.RemoveColumn("does_not_exist"))

	cols := s.Columns()
	require.Len(t, cols, 1)
	assert.Equal(t, "rank", cols[0].ID)
	for _, r := range s.Records() {
		_, has := r.Extra["tier"]
		assert.False(t, has)
		assert.Contains(t, r.Extra, "rank")
	}
}

func TestBulkUpdate(t *testing.T) {
	s := New()
	s.ReplaceAll(sample())
	require.NoError(t, s.AddColumn(mustColumn(t, "Legendary", pokemon.ColumnBoolean)))

	n, err := s.BulkUpdate(func(r pokemon.Record) bool { return r.HP > 100 }, Patch{"legendary": true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, r := range s.Records() {
		if r.HP > 100 {
			assert.Equal(t, true, r.Extra["legendary"], r.Name)
		} else {
			assert.Equal(t, false, r.Extra["legendary"], r.Name)
		}
	}
}

func TestBulkUpdateWithFilter(t *testing.T) {
	s := New()
	s.ReplaceAll(sample())

	pred, err := Match(Filter{Field: "types", Operator: OpEquals, Value: "normal"}, Filter{Field: "speed", Operator: OpGreater, Value: 40})
	require.NoError(t, err)

	n, err := s.BulkUpdate(pred, Patch{"attack": 100})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 100, s.Records()[3].Attack)
	assert.Equal(t, 0, s.Records()[2].Attack)
}

func TestMatchRejectsBadFilters(t *testing.T) {
	_, err := Match(Filter{Operator: OpEquals})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = Match(Filter{Field: "hp", Operator: "between"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestFilterOperators(t *testing.T) {
	r := pokemon.Record{ID: 25, Name: "Pikachu", Types: []string{"electric"}, HP: 35,
		Extra: map[string]any{"legendary": false}}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"hp gt", Filter{"hp", OpGreater, 30}, true},
		{"hp lte", Filter{"hp", OpLessEq, "34"}, false},
		{"name contains", Filter{"name", OpContains, "CHU"}, true},
		{"name eq is case-insensitive", Filter{"name", OpEquals, "pikachu"}, true},
		{"type ne", Filter{"types", OpNotEquals, "electric"}, false},
		{"bool eq", Filter{"legendary", OpEquals, "false"}, true},
		{"missing field", Filter{"tier", OpEquals, "S"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := Match(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pred(r))
		})
	}
}

func TestQuery(t *testing.T) {
	s := New()
	s.ReplaceAll(sample())

	t.Run("sorts descending by a stat", func(t *testing.T) {
		page := s.Query(QueryOptions{Sort: "hp", Desc: true})
		require.Len(t, page.Records, 4)
		assert.Equal(t, "Blissey", page.Records[0].Name)
		assert.Equal(t, "Charmander", page.Records[3].Name)
	})

	t.Run("sorts by name", func(t *testing.T) {
		page := s.Query(QueryOptions{Sort: "name"})
		assert.Equal(t, "Blissey", page.Records[0].Name)
		assert.Equal(t, "Snorlax", page.Records[3].Name)
	})

	t.Run("paginates", func(t *testing.T) {
		page := s.Query(QueryOptions{Page: 2, PageSize: 3})
		assert.Equal(t, 4, page.Total)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Records, 1)
		assert.Equal(t, 242, page.Records[0].ID)
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		page := s.Query(QueryOptions{Page: 9, PageSize: 3})
		assert.Empty(t, page.Records)
	})
}

func TestRecordsReturnsCopies(t *testing.T) {
	s := New()
	s.ReplaceAll(sample())

	got := s.Records()
	got[0].Name = "Mutated"
	got[0].Types[0] = "fire"

	fresh := s.Records()
	assert.Equal(t, "Bulbasaur", fresh[0].Name)
	assert.Equal(t, "grass", fresh[0].Types[0])
}

func TestConcurrentMutations(t *testing.T) {
	s := New()
	s.ReplaceAll(sample())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Insert(pokemon.Record{ID: 1000 + i})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Update(1, Patch{"speed": 50})
		}()
	}
	wg.Wait()

	assert.Equal(t, 54, s.Len())
}

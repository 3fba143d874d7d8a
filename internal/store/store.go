// Package store holds the in-memory record collection and its column schema.
//
// A Store is created empty, wholesale-replaced by a successful fetch or
// import, mutated by edits and column operations, and emptied by Clear.
// Nothing is persisted. Every method takes the store lock for its whole
// duration, so each mutation is applied atomically with respect to other
// callers; schema operations touch the schema and every record together.
//
// Invariant: after any operation, every record carries a value for every
// schema column and no Extra key outside the schema.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/JonMunkholm/pokelab/internal/pokemon"
)

var (
	// ErrUnknownField is returned when a patch names a field that is neither
	// a base field nor a schema column.
	ErrUnknownField = errors.New("unknown field")

	// ErrColumnExists is returned when adding a column whose identifier is
	// already in the schema or collides with a base field.
	ErrColumnExists = errors.New("column already exists")
)

// Patch is a set of field assignments keyed by base field name or column ID.
type Patch map[string]any

// Predicate selects records for BulkUpdate.
type Predicate func(pokemon.Record) bool

// State is a point-in-time summary for consumers rendering lifecycle state.
type State struct {
	Records int              `json:"records"`
	Columns []pokemon.Column `json:"columns"`
	Busy    bool             `json:"busy"`
	Error   string           `json:"error,omitempty"`
}

// Store is the single source of truth for records, schema and lifecycle flags.
type Store struct {
	mu      sync.RWMutex
	records []pokemon.Record
	columns []pokemon.Column
	busy    bool
	lastErr string
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// ReplaceAll discards the current collection, stores records and clears the
// error flag. Records are conformed to the current schema.
func (s *Store) ReplaceAll(records []pokemon.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]pokemon.Record, len(records))
	for i, r := range records {
		next[i] = s.conform(r.Clone())
	}
	s.records = next
	s.lastErr = ""
}

// Insert appends a record. Identifiers are not checked for uniqueness:
// duplicate IDs are accepted, and Update then only reaches the first one.
// Returns a copy of the record as stored, with custom columns filled in.
func (s *Store) Insert(r pokemon.Record) pokemon.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conform(r.Clone())
	s.records = append(s.records, c)
	return c.Clone()
}

// Update merges patch into the first record with the given ID.
// Returns false when no record matches.
func (s *Store) Update(id int, patch Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validatePatch(patch); err != nil {
		return false, err
	}
	for i := range s.records {
		if s.records[i].ID == id {
			s.apply(&s.records[i], patch)
			return true, nil
		}
	}
	return false, nil
}

// Remove deletes every record with the given ID and returns how many went.
func (s *Store) Remove(id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	removed := 0
	for _, r := range s.records {
		if r.ID == id {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	// Zero the tail so dropped records can be collected.
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = pokemon.Record{}
	}
	s.records = kept
	return removed
}

// Clear empties the collection and the schema and resets the error flag.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.columns = nil
	s.lastErr = ""
}

// AddColumn appends col to the schema and back-fills its default onto every
// record that lacks the key. A duplicate identifier fails with
// ErrColumnExists and leaves the schema unchanged.
func (s *Store) AddColumn(col pokemon.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col.ID == "" {
		return pokemon.ErrInvalidColumn
	}
	if pokemon.IsBaseField(col.ID) || s.columnIndex(col.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrColumnExists, col.ID)
	}
	if _, err := pokemon.ParseColumnType(string(col.Type)); err != nil {
		return err
	}
	col.Default = col.Coerce(col.Default)

	s.columns = append(s.columns, col)
	for i := range s.records {
		r := &s.records[i]
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		if _, ok := r.Extra[col.ID]; !ok {
			r.Extra[col.ID] = col.Default
		}
	}
	return nil
}

// RemoveColumn drops the schema entry and strips the key from every record.
// Unknown identifiers are a no-op.
func (s *Store) RemoveColumn(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.columnIndex(id)
	if idx < 0 {
		return false
	}
	s.columns = append(s.columns[:idx:idx], s.columns[idx+1:]...)
	for i := range s.records {
		delete(s.records[i].Extra, id)
	}
	return true
}

// BulkUpdate applies patch to every record matching pred and returns the
// number of records changed.
func (s *Store) BulkUpdate(pred Predicate, patch Patch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validatePatch(patch); err != nil {
		return 0, err
	}
	n := 0
	for i := range s.records {
		if pred(s.records[i]) {
			s.apply(&s.records[i], patch)
			n++
		}
	}
	return n, nil
}

// SetBusy records whether a fetch or import is in flight.
func (s *Store) SetBusy(busy bool) {
	s.mu.Lock()
	s.busy = busy
	s.mu.Unlock()
}

// SetError records the last user-facing error. An empty message clears it.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// Busy reports the busy flag.
func (s *Store) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// Err returns the last recorded error message.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a deep copy of the collection.
func (s *Store) Records() []pokemon.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pokemon.Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Columns returns a copy of the schema in the order columns were added.
func (s *Store) Columns() []pokemon.Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]pokemon.Column(nil), s.columns...)
}

// Column looks up a schema entry by identifier.
func (s *Store) Column(id string) (pokemon.Column, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.columnIndex(id); idx >= 0 {
		return s.columns[idx], true
	}
	return pokemon.Column{}, false
}

// Snapshot returns records and schema taken under one lock, for export.
func (s *Store) Snapshot() ([]pokemon.Record, []pokemon.Column) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pokemon.Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out, append([]pokemon.Column(nil), s.columns...)
}

// State returns the lifecycle summary.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Records: len(s.records),
		Columns: append([]pokemon.Column{}, s.columns...),
		Busy:    s.busy,
		Error:   s.lastErr,
	}
}

// columnIndex returns the schema position of id, or -1. Caller holds mu.
func (s *Store) columnIndex(id string) int {
	for i, c := range s.columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// conform back-fills schema defaults and strips keys outside the schema.
// Caller holds mu.
func (s *Store) conform(r pokemon.Record) pokemon.Record {
	if r.Types == nil {
		r.Types = []string{}
	}
	if len(s.columns) == 0 {
		r.Extra = nil
		return r
	}
	extra := make(map[string]any, len(s.columns))
	for _, c := range s.columns {
		if v, ok := r.Extra[c.ID]; ok {
			extra[c.ID] = c.Coerce(v)
		} else {
			extra[c.ID] = c.Default
		}
	}
	r.Extra = extra
	return r
}

// validatePatch rejects patches naming unknown fields. Caller holds mu.
func (s *Store) validatePatch(patch Patch) error {
	for field := range patch {
		if pokemon.IsBaseField(field) || s.columnIndex(field) >= 0 {
			continue
		}
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// apply writes a validated patch into r, coercing column values to their
// declared type. Caller holds mu.
func (s *Store) apply(r *pokemon.Record, patch Patch) {
	for field, v := range patch {
		if idx := s.columnIndex(field); idx >= 0 {
			v = s.columns[idx].Coerce(v)
		}
		r.Set(field, v)
	}
}

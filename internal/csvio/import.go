// Package csvio reads and writes the tabular CSV form of the record
// collection.
package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/pokelab/internal/pokemon"
)

// DefaultChunkSize is the number of rows converted between progress reports.
const DefaultChunkSize = 1000

var (
	// ErrFormat is returned for input with no header row or with rows the
	// CSV parser rejects.
	ErrFormat = errors.New("malformed CSV")

	// ErrNoData is returned when exporting an empty collection.
	ErrNoData = errors.New("no data to export")
)

// Mapping routes one source column into a record field.
type Mapping struct {
	Header string               `json:"header"`
	Field  string               `json:"field"`
	Type   pokemon.CoercionType `json:"type"`
}

// Options tunes an import.
type Options struct {
	// ChunkSize is the number of rows per progress report. Zero means DefaultChunkSize.
	ChunkSize int
}

// ProgressFunc receives the number of records converted so far.
type ProgressFunc func(records int)

// ParseMappings parses "header=field:type" specs. The type part is
// optional and defaults to string.
func ParseMappings(specs []string) ([]Mapping, error) {
	mappings := make([]Mapping, 0, len(specs))
	for _, spec := range specs {
		header, target, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(header) == "" {
			return nil, fmt.Errorf("mapping %q: want header=field[:type]", spec)
		}
		field, typeName, _ := strings.Cut(target, ":")
		t, err := pokemon.ParseCoercionType(typeName)
		if err != nil {
			return nil, fmt.Errorf("mapping %q: %w", spec, err)
		}
		mappings = append(mappings, Mapping{
			Header: strings.TrimSpace(header),
			Field:  strings.TrimSpace(field),
			Type:   t,
		})
	}
	return mappings, nil
}

// IdentityMappings maps every header onto the field of the same name, typed
// the way Export writes it. Headers that are neither base fields nor one of
// columns are mapped as text.
func IdentityMappings(headers []string, columns []pokemon.Column) []Mapping {
	colTypes := make(map[string]pokemon.ColumnType, len(columns))
	for _, c := range columns {
		colTypes[c.ID] = c.Type
	}

	mappings := make([]Mapping, 0, len(headers))
	for _, h := range headers {
		t := pokemon.CoerceString
		switch {
		case pokemon.IsNumericField(h):
			t = pokemon.CoerceNumber
		case colTypes[h] != "":
			t = colTypes[h].Coercion()
		}
		mappings = append(mappings, Mapping{Header: h, Field: h, Type: t})
	}
	return mappings
}

// boundMapping is a mapping resolved against the header row.
type boundMapping struct {
	Mapping
	index int
}

// bind resolves mappings to column positions. Mappings without a target
// field or whose header is absent are dropped. Duplicate headers resolve
// to the first occurrence.
func bind(headers []string, mappings []Mapping) []boundMapping {
	pos := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, seen := pos[h]; !seen {
			pos[h] = i
		}
	}

	bound := make([]boundMapping, 0, len(mappings))
	for _, m := range mappings {
		if strings.TrimSpace(m.Field) == "" {
			continue
		}
		i, ok := pos[m.Header]
		if !ok {
			continue
		}
		bound = append(bound, boundMapping{Mapping: m, index: i})
	}
	return bound
}

// Import converts CSV rows into records using mappings.
//
// Each row becomes pokemon.NewRecord(ordinal), 1-based over the non-empty
// data rows, and every mapping with a non-blank cell is applied on top:
// the cell is coerced to the mapping type, and a text value mapped to the
// types field is split into lower-cased tags. Blank cells leave the seeded
// default. onProgress, when non-nil, runs after each chunk of
// opts.ChunkSize rows and once more for the final partial chunk.
//
// A parse error aborts the import with ErrFormat and no records.
func Import(ctx context.Context, r io.Reader, mappings []Mapping, opts Options, onProgress ProgressFunc) ([]pokemon.Record, error) {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	cr := newCSVReader(Prepare(r))

	headers, err := readHeaderRow(cr)
	if err != nil {
		return nil, err
	}
	bound := bind(headers, mappings)

	var records []pokemon.Record
	inChunk := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if isBlankLine(row) {
			continue
		}

		records = append(records, convertRow(row, bound, len(records)+1))

		inChunk++
		if inChunk == chunkSize {
			inChunk = 0
			if onProgress != nil {
				onProgress(len(records))
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	if inChunk > 0 && onProgress != nil {
		onProgress(len(records))
	}
	if records == nil {
		records = []pokemon.Record{}
	}
	return records, nil
}

// convertRow builds one record from a data row.
func convertRow(row []string, bound []boundMapping, ordinal int) pokemon.Record {
	rec := pokemon.NewRecord(ordinal)
	for _, m := range bound {
		if m.index >= len(row) {
			continue
		}
		cell := row[m.index]
		if strings.TrimSpace(cell) == "" {
			continue
		}

		v := pokemon.Coerce(cell, m.Type)
		if s, ok := v.(string); ok && m.Field == pokemon.FieldTypes {
			rec.Types = pokemon.SplitTypes(s)
			continue
		}
		rec.Set(m.Field, v)
	}
	return rec
}

// isBlankLine reports whether row is a line with no content at all. Rows
// of empty or whitespace cells such as ",," still become default records
// so later ordinals stay aligned with the file.
func isBlankLine(row []string) bool {
	return len(row) == 1 && row[0] == ""
}

// newCSVReader returns a reader tolerant of ragged rows.
func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return cr
}

// readHeaderRow reads the first record and trims each header.
func readHeaderRow(cr *csv.Reader) ([]string, error) {
	row, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: no header row", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	headers := make([]string, len(row))
	for i, h := range row {
		headers[i] = strings.TrimSpace(h)
	}
	return headers, nil
}

// ReadHeaders returns the header row of r without reading any further rows.
func ReadHeaders(r io.Reader) ([]string, error) {
	return readHeaderRow(newCSVReader(Prepare(r)))
}

package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/pokelab/internal/pokemon"
)

// ExportHeader returns the header row: base fields then custom column IDs
// in schema order.
func ExportHeader(columns []pokemon.Column) []string {
	header := make([]string, 0, len(pokemon.BaseFields)+len(columns))
	header = append(header, pokemon.BaseFields...)
	for _, c := range columns {
		header = append(header, c.ID)
	}
	return header
}

// Export writes records as CSV. Tags are joined with ", "; fields a record
// lacks are written as empty cells.
func Export(w io.Writer, records []pokemon.Record, columns []pokemon.Column) error {
	if len(records) == 0 {
		return ErrNoData
	}

	header := ExportHeader(columns)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(header))
	for _, rec := range records {
		for i, field := range header {
			v, ok := rec.Get(field)
			if !ok {
				row[i] = ""
				continue
			}
			row[i] = pokemon.ToText(v)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", rec.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename suggests a download name stamped with t in Unix milliseconds.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("pokemon_data_%d.csv", t.UnixMilli())
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pokelab/internal/core"
	"github.com/JonMunkholm/pokelab/internal/csvio"
	"github.com/JonMunkholm/pokelab/internal/pokeapi"
)

func newFetchCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the full catalog and export it as CSV",
		Long: "Fetch every Pokémon from the remote API in concurrent batches and write\n" +
			"the table as CSV. Entries whose details cannot be retrieved are skipped\n" +
			"and listed in the summary.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd, true)
			if err != nil {
				return err
			}

			progress := cmd.ErrOrStderr()
			res, err := svc.Fetch(cmd.Context(), pokeapi.ProgressFunc(func(completed, total int) {
				fmt.Fprintf(progress, "\rfetched %d/%d", completed, total)
			}))
			fmt.Fprintln(progress)
			if err != nil {
				return err
			}

			if out == "" {
				out = csvio.ExportFilename(time.Now())
			}
			if err := writeExport(cmd, svc, out); err != nil {
				return err
			}

			return a.printSummary(cmd.OutOrStdout(), fetchSummary{
				File:    out,
				Total:   res.Total,
				Fetched: res.Fetched,
				Failed:  res.Failed,
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", `output CSV file, "-" for stdout (default: pokemon_data_<millis>.csv)`)
	return cmd
}

type fetchSummary struct {
	File    string                `json:"file"`
	Total   int                   `json:"total"`
	Fetched int                   `json:"fetched"`
	Failed  []pokeapi.FailedEntry `json:"failed,omitempty"`
}

func (a *app) printSummary(w io.Writer, v any) error {
	if a.flags.jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	switch s := v.(type) {
	case fetchSummary:
		fmt.Fprintf(w, "fetched %d of %d entries into %s\n", s.Fetched, s.Total, s.File)
		for _, f := range s.Failed {
			fmt.Fprintf(w, "  skipped %s: %s\n", f.Name, f.Error)
		}
	case convertSummary:
		fmt.Fprintf(w, "converted %d records into %s\n", s.Records, s.File)
		for _, c := range s.AddedColumns {
			fmt.Fprintf(w, "  added column %s\n", c)
		}
	default:
		fmt.Fprintln(w, v)
	}
	return nil
}

// writeExport writes the service's table to path, or to stdout for "-".
func writeExport(cmd *cobra.Command, svc *core.Service, path string) error {
	if path == "-" {
		return svc.Export(cmd.OutOrStdout())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := svc.Export(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

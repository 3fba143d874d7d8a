package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pokelab/internal/csvio"
)

func newHeadersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "headers FILE",
		Short: "Print the header row of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			headers, err := csvio.ReadHeaders(f)
			if err != nil {
				return err
			}

			if a.flags.jsonMode {
				return a.printSummary(cmd.OutOrStdout(), headers)
			}
			for _, h := range headers {
				fmt.Fprintln(cmd.OutOrStdout(), h)
			}
			return nil
		},
	}
}

type convertSummary struct {
	File         string   `json:"file"`
	Records      int      `json:"records"`
	AddedColumns []string `json:"addedColumns,omitempty"`
}

func newConvertCmd(a *app) *cobra.Command {
	var (
		out   string
		specs []string
	)

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Import a CSV file through a column mapping and export the table",
		Long: "Convert a lab CSV file into the table layout. Each --map routes one source\n" +
			"header into a field as header=field[:type], where type is string, number\n" +
			"or boolean. Fields that are not base fields become custom columns. Without\n" +
			"any --map every header maps onto the field of the same name.",
		Example: `  pokectl convert lab.csv --map "Name=name" --map "HP=hp:number" \
    --map "Legendary Status=Legendary Status:boolean" --out table.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mappings, err := csvio.ParseMappings(specs)
			if err != nil {
				return err
			}

			svc, err := a.service(cmd, false)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if len(mappings) == 0 {
				headers, err := csvio.ReadHeaders(f)
				if err != nil {
					return err
				}
				if _, err := f.Seek(0, 0); err != nil {
					return err
				}
				mappings = csvio.IdentityMappings(headers, nil)
			}

			res, err := svc.Import(cmd.Context(), f, mappings, nil)
			if err != nil {
				return err
			}

			if out == "" {
				out = csvio.ExportFilename(time.Now())
			}
			if err := writeExport(cmd, svc, out); err != nil {
				return err
			}

			return a.printSummary(cmd.OutOrStdout(), convertSummary{
				File:         out,
				Records:      res.Records,
				AddedColumns: res.AddedColumns,
			})
		},
	}

	cmd.Flags().StringArrayVarP(&specs, "map", "m", nil, "mapping header=field[:type], repeatable")
	cmd.Flags().StringVarP(&out, "out", "o", "", `output CSV file, "-" for stdout (default: pokemon_data_<millis>.csv)`)
	return cmd
}

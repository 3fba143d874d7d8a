// Package cli implements pokectl, the command-line companion to the lab
// data service. Commands run the same fetch, import and export pipeline as
// the HTTP API against an in-process store.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pokelab/internal/config"
	"github.com/JonMunkholm/pokelab/internal/core"
	"github.com/JonMunkholm/pokelab/internal/logging"
	"github.com/JonMunkholm/pokelab/internal/pokeapi"
	"github.com/JonMunkholm/pokelab/internal/store"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	logLevel  string
	logFormat string
	jsonMode  bool
}

// app wires a command run to its dependencies. fetcher is built from the
// environment unless set beforehand.
type app struct {
	flags   rootFlags
	fetcher core.Fetcher
}

// NewRootCmd creates the top-level "pokectl" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pokectl",
		Short: "Fetch, convert and export Pokémon lab data",
		Long: "pokectl fetches the Pokémon catalog, converts lab CSV files through a\n" +
			"column mapping and exports the resulting table as CSV.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.flags.logFormat, "log-format", "text", "log format: text or json")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "print summaries as JSON")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newFetchCmd(a))
	root.AddCommand(newHeadersCmd(a))
	root.AddCommand(newConvertCmd(a))

	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		return reportError(root.ErrOrStderr(), err)
	}
	return exitSuccess
}

// reportError prints err for a person and picks the exit code. Errors
// with a known user message are the caller's to fix.
func reportError(w io.Writer, err error) int {
	if core.IsUserFacing(err) {
		fmt.Fprintf(w, "Error: %s\n", core.FormatUserError(err))
		return exitUserError
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	return exitSysError
}

// logger builds the logger for one command run. Logs go to stderr so
// stdout stays clean for data.
func (a *app) logger(cmd *cobra.Command) *slog.Logger {
	return logging.New(a.flags.logLevel, a.flags.logFormat, cmd.ErrOrStderr())
}

// service builds a service over a fresh store. The remote fetcher is
// configured from the environment the way the server configures it.
func (a *app) service(cmd *cobra.Command, needFetcher bool) (*core.Service, error) {
	logger := a.logger(cmd)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	fetcher := a.fetcher
	if fetcher == nil && needFetcher {
		client := pokeapi.NewClient(cfg.PokeAPI.BaseURL,
			pokeapi.WithTimeout(cfg.PokeAPI.Timeout),
			pokeapi.WithUserAgent(cfg.PokeAPI.UserAgent),
		)
		fetcher = pokeapi.NewFetcher(client,
			pokeapi.WithBatchSize(cfg.Fetch.BatchSize),
			pokeapi.WithLogger(logger),
		)
	}

	return core.NewService(store.New(), fetcher,
		core.WithLogger(logger),
		core.WithChunkSize(cfg.Import.ChunkSize),
	), nil
}

// Package cli implements the roboadvisor command line.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jeonbongjun/roboadvisor/internal/config"
	"github.com/jeonbongjun/roboadvisor/internal/database"
	"github.com/jeonbongjun/roboadvisor/internal/logging"
	"github.com/jeonbongjun/roboadvisor/internal/seed"
	"github.com/jeonbongjun/roboadvisor/internal/store"
)

// app is the state shared by all commands once startup has run.
type app struct {
	db    *sql.DB
	store *store.Store
	seed  seed.Result
}

// Execute runs the command line with args, writing command output to stdout
// and logs to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "roboadvisor",
		Short: "Robo-advisor stock master and user data",
		Long: `roboadvisor manages the KRX stock master and the users of the robo-advisor:
their portfolios, watchlists and chat sessions.

Every command first migrates the database and, if the stock master is empty,
seeds it from the bundled KRX export.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			return a.start(cmd.Context(), dbPath, cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().String("db", "", "SQLite database path (overrides ROBOADVISOR_DB)")

	root.AddCommand(newInitCmd(a))
	root.AddCommand(newStocksCmd(a))
	root.AddCommand(newUsersCmd(a))
	root.AddCommand(newWatchlistCmd(a))
	root.AddCommand(newPortfolioCmd(a))
	root.AddCommand(newChatCmd(a))

	return root
}

// start is the one-time initialization every command runs before doing
// work: configure logging, open and migrate the database, seed the stock
// master. A failed seed is logged by the loader and does not stop startup.
func (a *app) start(ctx context.Context, dbPath string, logOut io.Writer) error {
	cfg := config.Load()
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	log := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	a.store = store.New(db)

	src := seed.EmbeddedSource()
	if cfg.StocksCSV != "" {
		src = seed.FileSource(cfg.StocksCSV)
	}
	loader := seed.NewLoader(a.store.Stocks, src)
	loader.Logger = log
	a.seed = loader.Run(ctx)

	return nil
}

func (a *app) close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		slog.Error("close database", "error", err)
	}
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Migrate the database and seed the stock master",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			res := a.seed

			switch res.Outcome {
			case seed.OutcomeSkipped:
				fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("stock master already populated (%d stocks)", res.Existing)))
			case seed.OutcomeLoaded:
				fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("stock master loaded: %d stocks", res.Loaded)))
				if res.Malformed > 0 {
					fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("%d malformed rows skipped", res.Malformed)))
				}
			case seed.OutcomeFailed:
				fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("stock master load failed: %v", res.Err)))
			}

			n, err := a.store.Stocks.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %d\n", labelStyle.Render("stocks:"), n)
			return nil
		},
	}
}

// notFound rewrites store.ErrNotFound into a message naming what is missing.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf(format, args...)
	}
	return err
}

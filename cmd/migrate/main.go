// Command migrate manages the ledger database schema.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/pharmapos/backend/internal/infrastructure/config"
	"github.com/pharmapos/backend/internal/infrastructure/logger"
	"github.com/pharmapos/backend/internal/infrastructure/migration"
	"github.com/pharmapos/backend/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type migrateFlags struct {
	path     string
	logLevel string
	log      *zap.Logger
}

// source is the embedded migration set unless --path names a directory
func (f *migrateFlags) source() fs.FS {
	if f.path == "" {
		return migrations.FS
	}
	return os.DirFS(f.path)
}

// withMigrator connects with the PHARMA_ database settings and runs fn
func (f *migrateFlags) withMigrator(ctx context.Context, fn func(*migration.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}

	m, err := migration.New(db, f.source(), f.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			f.log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return fn(m)
}

func newRootCommand(out io.Writer) *cobra.Command {
	flags := &migrateFlags{log: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PharmaPOS ledger schema",
		Long: `migrate applies the ledger schema migrations embedded in this binary, or those in
--path, to the database configured by config.toml and PHARMA_DATABASE_* variables.`,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(&logger.Config{
				Level:      flags.logLevel,
				Format:     "console",
				Output:     "stderr",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			flags.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = flags.log.Sync()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&flags.path, "path", "", "read migrations from this directory instead of the embedded set")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	run := func(op func(*migration.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return flags.withMigrator(cmd.Context(), op)
		}
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  run(func(m *migration.Migrator) error { return m.Up() }),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE:  run(func(m *migration.Migrator) error { return m.Down() }),
		},
		&cobra.Command{
			Use:   "step <n>",
			Short: "Apply n migrations, or roll back when n is negative",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return flags.withMigrator(cmd.Context(), func(m *migration.Migrator) error { return m.Steps(n) })
			},
		},
		&cobra.Command{
			Use:     "status",
			Aliases: []string{"version"},
			Short:   "Print the applied version and the number of pending migrations",
			Args:    cobra.NoArgs,
			RunE: run(func(m *migration.Migrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Record a version as applied without running it, clearing a dirty schema",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return flags.withMigrator(cmd.Context(), func(m *migration.Migrator) error { return m.Force(version) })
			},
		},
		newCreateCommand(flags, out),
		newListCommand(flags, out),
	)
	return rootCmd
}

func newCreateCommand(flags *migrateFlags, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [description]",
		Short: "Write the next numbered up/down migration pair",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := flags.path
			if dir == "" {
				dir = defaultMigrationsDir
			}
			description := ""
			if len(args) == 2 {
				description = args[1]
			}
			mf, err := migration.CreateMigration(dir, args[0], description)
			if err != nil {
				return err
			}
			flags.log.Info("Migration created", zap.String("version", mf.Version))
			_, err = fmt.Fprintf(out, "%s\n%s\n", mf.UpPath, mf.DownPath)
			return err
		},
	}
}

func newListCommand(flags *migrateFlags, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			names, err := migration.ListMigrations(flags.source())
			if err != nil {
				return err
			}
			for _, name := range names {
				if _, err := fmt.Fprintln(out, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

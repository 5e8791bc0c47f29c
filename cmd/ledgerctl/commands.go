package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	ledgerapp "github.com/pharmapos/backend/internal/application/ledger"
	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/infrastructure/logger"
	"github.com/pharmapos/backend/internal/infrastructure/snapshotfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errLedgerInvalid is returned by check when the report carries errors.
// The report itself has already been written.
var errLedgerInvalid = errors.New("ledger failed the integrity check")

type globalFlags struct {
	owner        string
	organization string
	logLevel     string
	sequential   bool
}

// scope overrides the file's own scope when --owner is given
func (g *globalFlags) scope(file *snapshotfile.File) ledger.Scope {
	if g.owner == "" {
		return file.Scope
	}
	return ledger.Scope{OwnerID: g.owner, OrganizationID: g.organization}
}

func (g *globalFlags) logger() *zap.Logger {
	l, err := logger.New(&logger.Config{
		Level:  g.logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func newRootCommand(out io.Writer) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Offline integrity checks for PharmaPOS ledger exports",
		Long: `ledgerctl loads a ledger export (.json or .toml) and runs the integrity engine
against it without a database. Every command prints indented JSON.`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&flags.owner, "owner", "", "owner id to check (default: the file's scope)")
	rootCmd.PersistentFlags().StringVar(&flags.organization, "org", "", "organization id, used with --owner")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level written to stderr")

	checkCmd := newCheckCommand(flags)
	checkCmd.Flags().BoolVar(&flags.sequential, "sequential", false, "run validators one after another")

	rootCmd.AddCommand(
		checkCmd,
		newFundingCommand(flags),
		newCanDeleteCommand(flags),
		newLineageCommand(flags),
	)
	return rootCmd
}

func newCheckCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Run every validator and print the integrity report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := snapshotfile.Read(args[0])
			if err != nil {
				return err
			}
			engine := ledger.NewIntegrityService(file.Loader(),
				ledger.WithParallelValidators(!flags.sequential),
			)
			report, err := engine.CheckIntegrity(contextOf(cmd), flags.scope(file))
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.IsValid {
				return errLedgerInvalid
			}
			return nil
		},
	}
}

func newFundingCommand(flags *globalFlags) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "funding <file>",
		Short: "Analyze how funding sources are consumed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := snapshotfile.Read(args[0])
			if err != nil {
				return err
			}
			query, err := ledgerapp.ParseFundingRange(flags.scope(file), from, to)
			if err != nil {
				return err
			}
			log := flags.logger()
			defer func() {
				_ = log.Sync()
			}()
			analysis, err := ledgerapp.NewFundingService(file.Loader(), log).Analyze(contextOf(cmd), query)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), analysis)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first consuming transaction date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last consuming transaction date, YYYY-MM-DD")
	return cmd
}

func newCanDeleteCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "can-delete <file> <accountId>",
		Short: "Report whether an account may be deleted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := snapshotfile.Read(args[0])
			if err != nil {
				return err
			}
			snapshot, err := file.Snapshot(contextOf(cmd), flags.scope(file))
			if err != nil {
				return err
			}
			if _, ok := snapshot.Account(args[1]); !ok {
				return ledger.ErrNoSuchAccount(args[1])
			}
			return writeJSON(cmd.OutOrStdout(), ledger.CheckAccountDeletion(snapshot, args[1]))
		},
	}
}

func newLineageCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lineage <file> <transactionId>",
		Short: "Trace the funding ancestors of a transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := snapshotfile.Read(args[0])
			if err != nil {
				return err
			}
			snapshot, err := file.Snapshot(contextOf(cmd), flags.scope(file))
			if err != nil {
				return err
			}
			lineage, err := ledger.TraceFundingLineage(snapshot, args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), lineage)
		},
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

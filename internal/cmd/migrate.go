package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/apony/quoteintake/internal/errors"
	"github.com/apony/quoteintake/internal/observability"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  "Apply pending schema migrations to the configured store (libsql or postgres).",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapValidationError(cmd.Context(), err, "invalid configuration")
		}

		db, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "migration failed")
		}
		defer func() { _ = db.Close() }()

		observability.CLILogger.Debug("Migrations applied", zap.String("driver", db.Driver()))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", db.Driver())
		return err
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apony/quoteintake/internal/core"
	"github.com/apony/quoteintake/internal/core/store"
	errwrap "github.com/apony/quoteintake/internal/errors"
	"github.com/apony/quoteintake/internal/output"
)

var (
	auditEntity    string
	auditOperation string
	auditLimit     int
	auditFormat    string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries for a quote request",
	Long: `List audit entries, oldest first. Notification dispatch outcomes are
recorded as notify_dispatch and notify_dispatch_failed entries.`,
	Example: `  quoteintake audit list --entity 3f2a9c1e-5b7d-4e8a-9c0f-1d2e3f4a5b6c
  quoteintake audit list --operation notify_dispatch_failed --output-format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(auditFormat)
		if err != nil {
			return errwrap.WrapValidationError(cmd.Context(), err, "invalid output format")
		}

		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapValidationError(cmd.Context(), err, "invalid configuration")
		}

		db, err := openStore(cmd.Context(), cfg.Store)
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "open store failed")
		}
		defer func() { _ = db.Close() }()

		entries, err := db.ListAudit(cmd.Context(), store.AuditFilter{
			EntityID:  strings.TrimSpace(auditEntity),
			Operation: core.AuditOperation(strings.TrimSpace(auditOperation)),
			Limit:     auditLimit,
		})
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "list audit entries failed")
		}

		rendered, err := output.NewFormatter(format).FormatAudit(entries)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return err
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)

	auditListCmd.Flags().StringVar(&auditEntity, "entity", "", "quote request id")
	auditListCmd.Flags().StringVar(&auditOperation, "operation", "", "filter by operation (create, notify_dispatch, notify_dispatch_failed)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "maximum entries to return")
	auditListCmd.Flags().StringVar(&auditFormat, "output-format", "table", "output format: table, json, markdown")
}

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apony/quoteintake/internal/core"
	errwrap "github.com/apony/quoteintake/internal/errors"
	"github.com/apony/quoteintake/internal/observability"
	"github.com/apony/quoteintake/internal/output"
)

var resendFormat string

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Operate on quote request notifications",
}

var notifyResendCmd = &cobra.Command{
	Use:   "resend <quote-request-id>",
	Short: "Re-dispatch the notification for a stored quote request",
	Long: `Run one dispatch pass for a stored quote request through the configured
transport chain (cloud function, then SMTP). The outcome is audited exactly
like the automatic dispatch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		format, err := output.ParseFormat(resendFormat)
		if err != nil {
			return errwrap.WrapValidationError(ctx, err, "invalid output format")
		}

		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapValidationError(ctx, err, "invalid configuration")
		}

		db, err := openStore(ctx, cfg.Store)
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "open store failed")
		}
		defer func() { _ = db.Close() }()

		id := strings.TrimSpace(args[0])
		quote, err := db.GetQuoteRequest(ctx, id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return errwrap.NewNotFoundError(fmt.Sprintf("quote request %s not found", id))
			}
			return errwrap.WrapInternal(ctx, err, "load quote request failed")
		}

		dispatcher, _, err := newDispatcher(ctx, cfg, db, observability.CLILogger)
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "notification setup failed")
		}

		attempt := dispatcher.Dispatch(ctx, quote)
		observability.CLILogger.Debug("Resend finished",
			zap.String("quote_id", quote.ID),
			zap.String("outcome", string(attempt.Outcome)))

		rendered, err := output.NewFormatter(format).FormatAttempt(attempt)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
			return err
		}

		if attempt.Outcome == core.NotifyFailure {
			return errwrap.WrapExternalService(ctx, errors.New(attempt.ErrorDetail), "notification dispatch failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyResendCmd)

	notifyResendCmd.Flags().StringVar(&resendFormat, "output-format", "table", "output format: table, json, markdown")
}

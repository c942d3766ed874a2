package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	fulerrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	apperrors "github.com/apony/quoteintake/internal/errors"
)

// ExitCodeFor maps a command error to a foundry exit code. Envelope codes
// carry the category; anything else is a generic failure.
func ExitCodeFor(err error) foundry.ExitCode {
	var envelope *fulerrors.ErrorEnvelope
	if !errors.As(err, &envelope) || envelope == nil {
		return foundry.ExitFailure
	}
	switch envelope.Code {
	case apperrors.CodeValidation:
		return foundry.ExitConfigInvalid
	case apperrors.CodeNotFound:
		return foundry.ExitFileNotFound
	default:
		return foundry.ExitFailure
	}
}

// ExitWithCode logs err with exit code metadata and exits. logger may be nil
// for failures before logger initialization.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		writeFatal(os.Stderr, msg, err)
		os.Exit(int(exitCode))
	}

	if logger == nil {
		writeFatal(os.Stderr, msg, err)
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	var envelope *fulerrors.ErrorEnvelope
	if errors.As(err, &envelope) && envelope != nil {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID))
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
	}
	fields = append(fields, zap.Error(err))
	logger.Error(msg, fields...)

	os.Exit(info.Code)
}

// ExitWithCodeStderr exits without a logger.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	ExitWithCode(nil, exitCode, msg, err)
}

func writeFatal(w io.Writer, msg string, err error) {
	var envelope *fulerrors.ErrorEnvelope
	switch {
	case err == nil:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	case errors.As(err, &envelope) && envelope != nil:
		fmt.Fprintf(w, "FATAL: %s [%s]: %s (correlation: %s)\n",
			msg, envelope.Code, envelope.Message, envelope.CorrelationID)
		if wrapped, ok := envelope.Context["wrapped_error"]; ok {
			fmt.Fprintf(w, "Cause: %v\n", wrapped)
		}
	default:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	}
}

package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger is used for CLI commands (SIMPLE profile)
	CLILogger *logging.Logger

	// ServerLogger is used by the HTTP server and the dispatcher
	ServerLogger *logging.Logger
)

// ServerLoggerOptions selects the server logger shape.
type ServerLoggerOptions struct {
	Service string
	// Level is one of trace, debug, info, warn, error.
	Level string
	// Profile is "structured" (JSON lines) or "simple" (console text).
	Profile     string
	Environment string
	Namespace   string
}

// InitCLILogger initializes the CLI logger with SIMPLE profile
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}

	if verbose {
		logger.SetLevel(logging.DEBUG)
	}

	CLILogger = logger
}

// InitServerLogger builds ServerLogger from opts and exits the process when
// the logging configuration is rejected.
func InitServerLogger(opts ServerLoggerOptions) {
	logger, err := NewServerLogger(opts)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}
	ServerLogger = logger
}

// NewServerLogger returns a logger for opts without touching the globals.
func NewServerLogger(opts ServerLoggerOptions) (*logging.Logger, error) {
	return logging.New(serverLoggerConfig(opts))
}

func serverLoggerConfig(opts ServerLoggerOptions) *logging.LoggerConfig {
	environment := strings.TrimSpace(opts.Environment)
	if environment == "" {
		environment = "production"
	}

	staticFields := make(map[string]any)
	if opts.Namespace != "" {
		staticFields["namespace"] = opts.Namespace
	}

	config := &logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: parseLogLevel(opts.Level),
		Service:      opts.Service,
		Environment:  environment,
		StaticFields: staticFields,
		Middleware: []logging.MiddlewareConfig{
			{
				Name:    "correlation",
				Enabled: true,
				Order:   100,
				Config:  make(map[string]any),
			},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:   "console",
				Format: "json",
				Console: &logging.ConsoleSinkConfig{
					Stream:   "stderr",
					Colorize: false,
				},
			},
		},
		EnableCaller:     true,
		EnableStacktrace: true,
	}

	if strings.EqualFold(strings.TrimSpace(opts.Profile), "simple") {
		config.Profile = logging.ProfileSimple
		config.Middleware = nil
		config.Sinks[0].Format = "console"
		config.EnableCaller = false
		config.EnableStacktrace = false
	}

	return config
}

// parseLogLevel converts string log level to logging severity string
func parseLogLevel(levelStr string) string {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "info":
		return "INFO"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// Sync flushes both loggers; errors from closed std streams are ignored.
func Sync() {
	if ServerLogger != nil {
		_ = ServerLogger.Sync()
	}
	if CLILogger != nil {
		_ = CLILogger.Sync()
	}
}

// exitWithCodeStderr exits with a semantic exit code, writing to stderr.
// Used for logger initialization failures before any logger exists.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: %s (exit code: %d)\n", msg, exitCode)
		}
		os.Exit(int(exitCode))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)

	os.Exit(info.Code)
}

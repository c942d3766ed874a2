package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitCLILogger(t *testing.T) {
	original := CLILogger
	t.Cleanup(func() { CLILogger = original })

	InitCLILogger("quoteintake-test", true)
	require.NotNil(t, CLILogger)
	CLILogger.Debug("cli logger ready", zap.String("mode", "verbose"))
}

func TestInitServerLoggerProfiles(t *testing.T) {
	original := ServerLogger
	t.Cleanup(func() { ServerLogger = original })

	for _, profile := range []string{"structured", "simple", ""} {
		t.Run("profile "+profile, func(t *testing.T) {
			InitServerLogger(ServerLoggerOptions{
				Service:     "quoteintake-test",
				Level:       "debug",
				Profile:     profile,
				Environment: "test",
				Namespace:   "quoteintake",
			})
			require.NotNil(t, ServerLogger)
			ServerLogger.Info("server logger ready", zap.String("profile", profile))
		})
	}
}

func TestServerLoggerConfig(t *testing.T) {
	structured := serverLoggerConfig(ServerLoggerOptions{Service: "svc", Namespace: "ns"})
	require.Equal(t, logging.ProfileStructured, structured.Profile)
	require.Equal(t, "production", structured.Environment)
	require.Equal(t, "INFO", structured.DefaultLevel)
	require.Equal(t, "ns", structured.StaticFields["namespace"])
	require.Len(t, structured.Middleware, 1)
	require.Equal(t, "json", structured.Sinks[0].Format)

	simple := serverLoggerConfig(ServerLoggerOptions{Service: "svc", Profile: "Simple", Level: "WARN"})
	require.Equal(t, logging.ProfileSimple, simple.Profile)
	require.Equal(t, "WARN", simple.DefaultLevel)
	require.Empty(t, simple.Middleware)
	require.Equal(t, "console", simple.Sinks[0].Format)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "TRACE",
		"debug":   "DEBUG",
		" Info ":  "INFO",
		"warning": "WARN",
		"error":   "ERROR",
		"bogus":   "INFO",
	}
	for input, want := range cases {
		require.Equal(t, want, parseLogLevel(input), input)
	}
}

func TestEmbeddedCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()
	require.NotEmpty(t, version.Gofulmen)
	require.NotEmpty(t, version.Crucible)
}

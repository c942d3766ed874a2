package cmd

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/apony/quoteintake/internal/config"
	"github.com/apony/quoteintake/internal/observability"
)

var (
	cfgFile string
	envFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Public quote request intake service",
	Long: `quoteintake accepts public freight quote requests, rate limits and
validates them, stores them with a daily reference code, and notifies the
operations team through a cloud function with SMTP fallback.

Use the subcommands to run the server or operate on stored requests.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry so CLI commands never emit metrics to stdout.
	// serve installs the Prometheus-backed system.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/quoteintake/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before reading QUOTEINTAKE_* variables (default .env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig layers defaults, the config file, the dotenv file and the
// environment onto the global viper instance.
func initConfig() {
	observability.InitCLILogger(config.AppName, verbose)

	if err := loadDotEnv(envFile); err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Failed to load env file", err)
	}

	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if dir := config.DefaultConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		} else if verbose {
			observability.CLILogger.Warn("Could not resolve XDG config directory")
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			observability.CLILogger.Debug("No config file found, using defaults and environment variables")
		case cfgFile != "":
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to read config file", err)
		default:
			observability.CLILogger.Warn("Error reading config file", zap.Error(err))
		}
		return
	}

	observability.CLILogger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
}

// loadDotEnv loads path, or ./.env when path is empty. A missing default
// file is not an error. Variables already set in the environment win.
func loadDotEnv(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// loadConfig decodes the global viper settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// adminToken enables the signal endpoint when set.
func adminToken() string {
	return strings.TrimSpace(os.Getenv(config.EnvPrefix + "_ADMIN_TOKEN"))
}

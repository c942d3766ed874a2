package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/apony/quoteintake/internal/config"
	errwrap "github.com/apony/quoteintake/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapValidationError(cmd.Context(), err, "invalid configuration")
		}

		if used := viper.ConfigFileUsed(); used != "" {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n", used); err != nil {
				return err
			}
		}
		return writeConfigYAML(cmd, cfg)
	},
}

func writeConfigYAML(cmd *cobra.Command, cfg *config.Config) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

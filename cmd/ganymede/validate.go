package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting the gateway.

All validation failures are reported at once, so a broken file can be fixed
in one pass.

Examples:
  # Validate the default config
  ganymede validate

  # Validate a specific file
  ganymede validate --config /etc/ganymede/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Printf("✗ Configuration invalid (%d problems):\n", len(verrs))
			for _, v := range verrs {
				fmt.Printf("  - %s: %s\n", v.Field, v.Message)
			}
			return fmt.Errorf("%d validation errors", len(verrs))
		}
		return err
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  Listen address: %s\n", cfg.Gateway.ListenAddress)
	fmt.Printf("  Backend: %s (model %s)\n", cfg.Backend.Type, cfg.Backend.Model)
	fmt.Printf("  Audit enabled: %v\n", cfg.Audit.Enabled)
	return nil
}

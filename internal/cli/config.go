package cli

import (
	"fmt"

	"github.com/harun/agentgate/internal/logger"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and print the effective configuration",
	Long: `Load configuration from the environment (and .env outside production),
validate it and print the result with credentials redacted.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	redactor := logger.NewRedactor()
	// credentials embedded in a redis URL
	if err := redactor.AddPattern(`rediss?://[^/\s"@]+@`); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), redactor.Redact(cfg.String()))
	return nil
}

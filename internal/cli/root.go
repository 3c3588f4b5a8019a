package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	envFile  string
	logLevel string
)

// errReported marks a failure whose details were already printed
var errReported = errors.New("failure already reported")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentgate",
	Short: "agentgate - gateway for a hosted AI agent",
	Long: `agentgate serves a chat API and web UI in front of an Azure AI Foundry agent.
It resolves the agent at startup, streams its replies to browsers, and ships
tools to review evaluation and red team results and to smoke test a deployment.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(rootCmd.ErrOrStderr(), "❌ Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded outside production (default is ./.env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

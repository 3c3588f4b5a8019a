package cli

import (
	"errors"

	"github.com/harun/agentgate/internal/report"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Display evaluation and red team results",
}

var redteamCmd = &cobra.Command{
	Use:   "redteam [scan-dir]",
	Short: "Display red team scan results",
	Long: `Display the results of a red team scan. Without an argument the most
recent .scan_* directory under redteam_outputs/ is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRedTeam,
}

var evalCmd = &cobra.Command{
	Use:   "eval [results-file]",
	Short: "Display agent evaluation results",
	Long:  `Display agent evaluation results. Defaults to ` + report.DefaultEvalFile + `.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEval,
}

func init() {
	reportCmd.AddCommand(redteamCmd)
	reportCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(reportCmd)
}

func runRedTeam(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var scanDir string
	if len(args) > 0 {
		scanDir = args[0]
	} else {
		latest, err := report.LatestScan(report.DefaultScanRoot)
		if errors.Is(err, report.ErrNoScans) {
			report.NoScansHint(out)
			return errReported
		}
		if err != nil {
			return err
		}
		scanDir = latest
	}

	return report.RedTeam(out, scanDir)
}

func runEval(cmd *cobra.Command, args []string) error {
	file := report.DefaultEvalFile
	if len(args) > 0 {
		file = args[0]
	}
	return report.Evaluation(cmd.OutOrStdout(), file)
}

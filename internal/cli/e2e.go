package cli

import (
	"time"

	"github.com/harun/agentgate/internal/e2e"
	"github.com/spf13/cobra"
)

var (
	apimURL         string
	subscriptionKey string
	e2ePause        time.Duration
)

var e2eCmd = &cobra.Command{
	Use:   "e2e",
	Short: "Smoke test a deployed gateway through API management",
	Long: `Run the end to end checks (health, agent, chat streaming, rate limiting and
frontend) against an API management gateway and print a summary.`,
	Args: cobra.NoArgs,
	RunE: runE2E,
}

func init() {
	e2eCmd.Flags().StringVar(&apimURL, "apim-url", "", "API management gateway URL")
	e2eCmd.Flags().StringVar(&subscriptionKey, "subscription-key", "", "API management subscription key")
	e2eCmd.Flags().DurationVar(&e2ePause, "pause", time.Second, "pause between checks")
	_ = e2eCmd.MarkFlagRequired("apim-url")
	_ = e2eCmd.MarkFlagRequired("subscription-key")
	rootCmd.AddCommand(e2eCmd)
}

func runE2E(cmd *cobra.Command, args []string) error {
	runner, err := e2e.NewRunner(e2e.Config{
		BaseURL:         apimURL,
		SubscriptionKey: subscriptionKey,
		Out:             cmd.OutOrStdout(),
		Pause:           e2ePause,
		RateLimitDelay:  100 * time.Millisecond,
	})
	if err != nil {
		return err
	}

	if !runner.Summary(runner.Run(cmd.Context())) {
		return errReported
	}
	return nil
}

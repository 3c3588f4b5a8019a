package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harun/agentgate/pkg/agent"
	"github.com/spf13/cobra"
)

var statusURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status",
	Long:  `Query a running gateway's health and agent endpoints.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "http://localhost:50505", "gateway base URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	base := strings.TrimRight(statusURL, "/")

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	var health struct {
		Status string `json:"status"`
	}
	if err := getJSON(ctx, base+"/health", &health); err != nil {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}
	fmt.Fprintf(out, "Status: %s\n", health.Status)

	var ref agent.Reference
	if err := getJSON(ctx, base+"/agent", &ref); err != nil {
		return fmt.Errorf("failed to fetch agent: %w", err)
	}
	fmt.Fprintf(out, "Agent: %s (%s)\n", ref.Name, ref.ID)
	fmt.Fprintf(out, "Model: %s\n", ref.Model)

	return nil
}

func getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

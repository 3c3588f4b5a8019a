package cli

import (
	"context"
	"fmt"

	"github.com/harun/agentgate/internal/app"
	"github.com/harun/agentgate/internal/config"
	"github.com/harun/agentgate/internal/logger"
	"github.com/harun/agentgate/internal/metrics"
	"github.com/harun/agentgate/pkg/conversation"
	"github.com/harun/agentgate/pkg/foundry"
	"github.com/harun/agentgate/pkg/gateway"
	"github.com/harun/agentgate/pkg/session"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat gateway",
	Long: `Resolve the configured agent and serve the chat API and web UI until
interrupted. Startup fails when the agent cannot be found or tracing is
enabled without an Application Insights connection.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads and validates configuration, applying global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    !cfg.Production,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	m := metrics.NewMetrics()

	manager, err := app.NewManager(app.Config{
		AgentID:          cfg.Agent.ID,
		AgentName:        cfg.Agent.Name,
		TelemetryEnabled: cfg.Tracing.Enabled,
		ServiceName:      "agentgate",
		ServiceVersion:   version,
		NewClient:        projectClientFactory(cfg),
		Logger:           log.GetZerolog(),
		Metrics:          m,
	})
	if err != nil {
		return err
	}

	return manager.Run(cmd.Context(), func(ctx context.Context, st *app.State) error {
		return serveGateway(ctx, cfg, st, log, m)
	})
}

func projectClientFactory(cfg *config.Config) app.ClientFactory {
	return func(ctx context.Context) (app.ProjectClient, error) {
		cred, err := foundry.NewCredential()
		if err != nil {
			return nil, err
		}
		client, err := foundry.NewClient(foundry.ClientConfig{
			Endpoint:   cfg.Project.Endpoint,
			APIVersion: cfg.Project.APIVersion,
		}, cred)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func serveGateway(ctx context.Context, cfg *config.Config, st *app.State, log *logger.Logger, m *metrics.Metrics) error {
	store, err := session.Open(ctx, session.Config{
		RedisURL: cfg.Session.RedisURL,
		TTL:      cfg.Session.TTL,
	}, log.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close session store")
		}
	}()

	chat, err := conversation.NewService(conversation.ServiceConfig{
		Backend: st.Client,
		Threads: store,
		Logger:  log.GetZerolog(),
		Metrics: m,
	})
	if err != nil {
		return err
	}

	srv, err := gateway.NewServer(gateway.Config{
		Host:               cfg.Gateway.Host,
		Port:               cfg.Gateway.Port,
		StaticDir:          cfg.Gateway.StaticDir,
		RateLimitPerMinute: cfg.Gateway.RateLimitPerMinute,
		SessionTTL:         cfg.Session.TTL,
		Agent:              st.Agent,
		Chat:               chat,
		Logger:             log.GetZerolog(),
		Metrics:            m,
	})
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

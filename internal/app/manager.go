// Package app owns the process-wide project client and resolved agent.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harun/agentgate/internal/metrics"
	"github.com/harun/agentgate/internal/tracing"
	"github.com/harun/agentgate/pkg/agent"
	"github.com/harun/agentgate/pkg/conversation"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrTelemetryUnavailable is returned when tracing is enabled but the project
// has no Application Insights connection
var ErrTelemetryUnavailable = errors.New("application insights connection string unavailable")

const telemetryHint = "Enable it via the 'Tracing' tab in your AI Foundry project page."

// Status is the lifecycle position of a Manager
type Status string

const (
	StatusStarting Status = "starting"
	StatusReady    Status = "ready"
	StatusStopped  Status = "stopped"
	StatusFailed   Status = "failed"
)

// ProjectClient is everything the application needs from the remote project
type ProjectClient interface {
	agent.Directory
	conversation.Backend
	TelemetryConnectionString(ctx context.Context) (string, error)
	Close() error
}

// ClientFactory builds the project client during Start
type ClientFactory func(ctx context.Context) (ProjectClient, error)

// State is the immutable snapshot published once the manager is ready
type State struct {
	Client ProjectClient
	Agent  agent.Reference
}

// Config configures a Manager
type Config struct {
	AgentID          string
	AgentName        string
	TelemetryEnabled bool

	ServiceName    string
	ServiceVersion string

	NewClient ClientFactory
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics

	// TraceExporter replaces the OTLP exporter, used by tests
	TraceExporter sdktrace.SpanExporter
}

// Manager drives Starting -> Ready -> Stopped, or Starting -> Failed
type Manager struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.RWMutex
	status Status
	state  *State

	client       ProjectClient
	tracer       *tracing.Provider
	teardownOnce sync.Once
}

// NewManager creates a manager in the Starting state
func NewManager(cfg Config) (*Manager, error) {
	if cfg.NewClient == nil {
		return nil, fmt.Errorf("client factory is required")
	}
	if cfg.AgentName == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "agentgate"
	}

	return &Manager{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "app").Logger(),
		status: StatusStarting,
	}, nil
}

// Start builds the client, enables tracing when configured and resolves the
// agent. Any failure tears the client down and leaves the manager Failed.
func (m *Manager) Start(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusStarting || m.client != nil {
		return nil, fmt.Errorf("manager is %s", m.status)
	}

	m.logger.Info().Msg("Starting application")

	client, err := m.cfg.NewClient(ctx)
	if err != nil {
		return nil, m.fail(fmt.Errorf("failed to create project client: %w", err))
	}
	m.client = client

	if m.cfg.TelemetryEnabled {
		if err := m.startTracing(ctx); err != nil {
			return nil, m.fail(err)
		}
	}

	resolver, err := agent.NewResolver(agent.ResolverConfig{
		Directory: client,
		Logger:    m.cfg.Logger,
		Metrics:   m.cfg.Metrics,
	})
	if err != nil {
		return nil, m.fail(err)
	}

	ref, err := resolver.Resolve(ctx, m.cfg.AgentID, m.cfg.AgentName)
	if err != nil {
		return nil, m.fail(err)
	}

	m.state = &State{Client: client, Agent: ref}
	m.status = StatusReady

	m.logger.Info().
		Str("agent_id", ref.ID).
		Str("agent_name", ref.Name).
		Msg("Application ready")

	return m.state, nil
}

func (m *Manager) startTracing(ctx context.Context) error {
	conn, err := m.client.TelemetryConnectionString(ctx)
	if err == nil && conn == "" {
		err = ErrTelemetryUnavailable
	} else if err != nil {
		err = fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
	}
	if err != nil {
		m.logger.Error().Err(err).Msg("Tracing is enabled but Application Insights is not configured for this project")
		m.logger.Error().Msg(telemetryHint)
		return err
	}

	provider, err := tracing.Init(ctx, tracing.Config{
		ServiceName:      m.cfg.ServiceName,
		ServiceVersion:   m.cfg.ServiceVersion,
		ConnectionString: conn,
		Exporter:         m.cfg.TraceExporter,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	m.tracer = provider

	m.logger.Info().Msg("Azure Monitor tracing enabled")
	return nil
}

// fail must be called with mu held
func (m *Manager) fail(err error) error {
	m.status = StatusFailed
	m.logger.Error().Err(err).Msg("Application failed to start")
	m.teardown()
	return err
}

// Stop releases the client and flushes tracing. Teardown happens at most once
// and its errors are logged.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusFailed {
		m.status = StatusStopped
	}
	m.state = nil

	m.teardown()
	m.logger.Info().Msg("Application stopped")
}

func (m *Manager) teardown() {
	m.teardownOnce.Do(func() {
		if m.client != nil {
			if err := m.client.Close(); err != nil {
				m.logger.Error().Err(err).Msg("Failed to close project client")
			}
		}

		if m.tracer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := m.tracer.Shutdown(ctx); err != nil {
				m.logger.Error().Err(err).Msg("Failed to shutdown tracing")
			}
			cancel()
		}
	})
}

// Status returns the current lifecycle status
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// State returns the published snapshot, or nil unless ready
func (m *Manager) State() *State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Run starts the manager, calls serve until it returns or the process gets
// SIGINT/SIGTERM, then stops the manager.
func (m *Manager) Run(ctx context.Context, serve func(ctx context.Context, st *State) error) error {
	st, err := m.Start(ctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = serve(ctx, st)
	if ctx.Err() != nil {
		m.logger.Info().Msg("Shutdown requested")
	}

	m.Stop()
	return err
}

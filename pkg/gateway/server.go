package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/harun/agentgate/internal/metrics"
	"github.com/harun/agentgate/pkg/agent"
	"github.com/harun/agentgate/pkg/conversation"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	serverName             = "agentgate"
)

// Chat is the conversation surface the handlers drive
type Chat interface {
	Send(ctx context.Context, agentID, sessionID, message string) (conversation.Stream, error)
	History(ctx context.Context, sessionID string) ([]conversation.Message, error)
}

// Config holds server configuration
type Config struct {
	Host               string
	Port               int
	StaticDir          string
	RateLimitPerMinute int // 0 disables
	SessionTTL         time.Duration
	ShutdownTimeout    time.Duration

	// Agent is the resolved agent, fixed for the server's lifetime
	Agent   agent.Reference
	Chat    Chat
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Server is the HTTP surface in front of the remote agent
type Server struct {
	host            string
	port            int
	staticDir       string
	sessionTTL      time.Duration
	shutdownTimeout time.Duration
	agent           agent.Reference
	chat            Chat
	limiter         *RateLimiter
	metrics         *metrics.Metrics
	logger          zerolog.Logger
	handler         http.Handler

	server         *http.Server
	listener       net.Listener
	serveErr       chan error
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Chat == nil {
		return nil, fmt.Errorf("chat is required")
	}
	if cfg.Agent.ID == "" {
		return nil, fmt.Errorf("resolved agent is required")
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, fmt.Errorf("invalid rate limit: %d", cfg.RateLimitPerMinute)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		host:            cfg.Host,
		port:            cfg.Port,
		staticDir:       cfg.StaticDir,
		sessionTTL:      cfg.SessionTTL,
		shutdownTimeout: cfg.ShutdownTimeout,
		agent:           cfg.Agent,
		chat:            cfg.Chat,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger.With().Str("component", "gateway").Logger(),
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimitPerMinute)
	}

	s.handler = s.buildHandler()

	return s, nil
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	// Routes are served both at the root and under /api so the gateway
	// works with and without an APIM prefix rewrite
	for _, prefix := range []string{"", "/api"} {
		mux.HandleFunc("GET "+prefix+"/health", s.handleHealth)
		mux.HandleFunc("GET "+prefix+"/agent", s.handleAgent)
		mux.HandleFunc("POST "+prefix+"/chat", s.handleChat)
		mux.HandleFunc("GET "+prefix+"/chat/history", s.handleHistory)
	}

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.registerStatic(mux)

	var h http.Handler = mux
	h = s.withRateLimit(h)
	h = s.withRecover(h)
	h = s.withMetrics(h)
	h = s.withRequestID(h)
	h = s.withShutdownGuard(h)
	return otelhttp.NewHandler(h, serverName)
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serveErr = make(chan error, 1)

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting gateway server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
			s.serveErr <- err
		}
		close(s.serveErr)
	}()

	return nil
}

// Addr returns the bound address, useful when Port is 0
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until ctx is done or serving fails,
// then stops it
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-s.serveErr:
		if ok {
			serveErr = err
		}
	}

	if err := s.Stop(); err != nil && serveErr == nil {
		return err
	}
	return serveErr
}

// Stop gracefully stops the gateway server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	if s.isShuttingDown {
		s.shutdownMu.Unlock()
		return nil
	}
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	// Wait for in-flight requests with timeout
	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/agentgate/internal/metrics"
	"github.com/harun/agentgate/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "github.com/harun/agentgate/pkg/conversation"

// ServiceConfig configures a Service
type ServiceConfig struct {
	Backend Backend
	Threads ThreadStore
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Service runs chat turns against the remote agent
type Service struct {
	backend Backend
	threads ThreadStore
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewService creates a conversation service
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.Threads == nil {
		return nil, fmt.Errorf("thread store is required")
	}

	return &Service{
		backend: cfg.Backend,
		threads: cfg.Threads,
		logger:  cfg.Logger.With().Str("component", "conversation").Logger(),
		metrics: cfg.Metrics,
	}, nil
}

// Send posts message to the session's thread and opens the reply stream.
// The thread is created on first use. The returned stream is bound to ctx.
func (s *Service) Send(ctx context.Context, agentID, sessionID, message string) (Stream, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "conversation.send",
		attribute.String("agent.id", agentID),
	)
	defer span.End()

	threadID, err := s.ensureThread(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("thread.id", threadID))

	if err := s.backend.AddUserMessage(ctx, threadID, message); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to add message to thread %s: %w", threadID, err)
	}

	logger := tracing.LoggerFromContext(tracing.WithThreadID(ctx, threadID), s.logger)
	logger.Debug().Int("message_len", len(message)).Msg("Starting run")

	return newMeteredStream(ctx, s.backend.StreamRun(ctx, threadID, agentID), s.metrics, logger), nil
}

// History returns the session's thread messages oldest first, or an empty
// slice when the session has no thread yet.
func (s *Service) History(ctx context.Context, sessionID string) ([]Message, error) {
	threadID, ok, err := s.threads.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up thread: %w", err)
	}
	if !ok {
		return []Message{}, nil
	}

	messages, err := s.backend.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for thread %s: %w", threadID, err)
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}

func (s *Service) ensureThread(ctx context.Context, sessionID string) (string, error) {
	threadID, ok, err := s.threads.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to look up thread: %w", err)
	}
	if ok {
		return threadID, nil
	}

	threadID, err = s.backend.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ThreadsCreated.Inc()
	}

	if err := s.threads.Set(ctx, sessionID, threadID); err != nil {
		return "", fmt.Errorf("failed to bind thread: %w", err)
	}

	s.logger.Info().Str("session_id", sessionID).Str("thread_id", threadID).Msg("Created thread")
	return threadID, nil
}

// meteredStream records stream metrics around a backend stream
type meteredStream struct {
	Stream

	ctx     context.Context
	metrics *metrics.Metrics
	logger  zerolog.Logger
	start   time.Time
	chunks  int
	once    sync.Once
}

func newMeteredStream(ctx context.Context, inner Stream, m *metrics.Metrics, logger zerolog.Logger) *meteredStream {
	if m != nil {
		m.ChatStreamsActive.Inc()
	}
	return &meteredStream{
		Stream:  inner,
		ctx:     ctx,
		metrics: m,
		logger:  logger,
		start:   time.Now(),
	}
}

func (s *meteredStream) Next() bool {
	if !s.Stream.Next() {
		return false
	}
	s.chunks++
	if s.metrics != nil {
		s.metrics.ChatChunksTotal.Inc()
	}
	return true
}

func (s *meteredStream) Close() error {
	err := s.Stream.Close()

	s.once.Do(func() {
		status := metrics.StreamCompleted
		switch {
		case s.ctx.Err() != nil || errors.Is(s.Stream.Err(), context.Canceled):
			status = metrics.StreamCancelled
		case s.Stream.Err() != nil:
			status = metrics.StreamFailed
		}

		if s.metrics != nil {
			s.metrics.ChatStreamsActive.Dec()
			s.metrics.ChatStreamsTotal.WithLabelValues(status).Inc()
			s.metrics.ChatStreamDuration.Observe(time.Since(s.start).Seconds())
		}

		s.logger.Info().
			Str("status", status).
			Int("chunks", s.chunks).
			Dur("duration", time.Since(s.start)).
			Msg("Chat stream closed")
	})

	return err
}

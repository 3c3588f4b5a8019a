package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/agentgate/internal/tracing"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	tracerName    = "github.com/harun/agentgate/pkg/session"
	defaultPrefix = "agentgate:session:"
)

// RedisStore keeps bindings in redis so they survive restarts and are shared
// between replicas
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore connects to cfg.RedisURL and pings it
func NewRedisStore(ctx context.Context, cfg Config, logger zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "session_store").Logger(),
	}, nil
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Get returns the thread bound to sessionID
func (s *RedisStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.get")
	defer span.End()

	if err := ValidateID(sessionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", false, err
	}

	threadID, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("session.bound", false))
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", false, fmt.Errorf("failed to read session: %w", err)
	}

	span.SetAttributes(attribute.Bool("session.bound", true))
	return threadID, true, nil
}

// Set binds sessionID to threadID for the store's TTL
func (s *RedisStore) Set(ctx context.Context, sessionID, threadID string) error {
	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.set",
		attribute.String("thread.id", threadID),
	)
	defer span.End()

	if err := ValidateID(sessionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := s.client.Set(ctx, s.key(sessionID), threadID, s.ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write session: %w", err)
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().Str("thread_id", threadID).Msg("Session bound")
	return nil
}

// Close closes the redis connection pool
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

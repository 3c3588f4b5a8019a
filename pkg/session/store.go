package session

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
)

const (
	DefaultTTL       = 24 * time.Hour
	maxSessionIDSize = 128
)

// Store maps session IDs to thread IDs
type Store interface {
	Get(ctx context.Context, sessionID string) (threadID string, ok bool, err error)
	Set(ctx context.Context, sessionID, threadID string) error
	Close() error
}

// Config selects and configures a Store
type Config struct {
	// RedisURL selects the redis store when set, e.g. redis://localhost:6379/0
	RedisURL string
	TTL      time.Duration
	// Prefix namespaces redis keys
	Prefix string
}

// Open returns a redis store when cfg.RedisURL is set, otherwise an
// in-memory store
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (Store, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	if cfg.RedisURL == "" {
		logger.Info().Dur("ttl", cfg.TTL).Msg("Using in-memory session store")
		return NewMemoryStore(cfg.TTL, logger), nil
	}

	store, err := NewRedisStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Dur("ttl", cfg.TTL).Msg("Using redis session store")
	return store, nil
}

// ValidateID rejects session IDs that could not have come from a session cookie
func ValidateID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if len(sessionID) > maxSessionIDSize {
		return fmt.Errorf("session id exceeds %d bytes", maxSessionIDSize)
	}
	if strings.IndexFunc(sessionID, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return fmt.Errorf("session id cannot contain whitespace or control characters")
	}
	return nil
}

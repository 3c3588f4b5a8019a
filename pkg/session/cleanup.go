package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCleanupInterval is how often expired bindings are swept
const DefaultCleanupInterval = 10 * time.Minute

// Cleanup periodically prunes expired in-memory bindings
type Cleanup struct {
	store    *MemoryStore
	interval time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
	done     chan struct{}
	running  bool
	mu       sync.Mutex
}

// NewCleanup creates a sweeper for store
func NewCleanup(store *MemoryStore, interval time.Duration, logger zerolog.Logger) *Cleanup {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	return &Cleanup{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("component", "session_cleanup").Logger(),
	}
}

// Start starts the sweeper. Starting a running sweeper is a no-op.
func (c *Cleanup) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stopCh, c.done)

	c.logger.Debug().Dur("interval", c.interval).Msg("Session cleanup started")
}

// Stop stops the sweeper and waits for it to exit
func (c *Cleanup) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.done
	c.mu.Unlock()

	<-done
	c.logger.Debug().Msg("Session cleanup stopped")
}

func (c *Cleanup) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-stopCh:
			return
		}
	}
}

func (c *Cleanup) sweep() {
	if deleted := c.store.prune(); deleted > 0 {
		c.logger.Debug().Int("deleted", deleted).Msg("Pruned expired sessions")
	}
}

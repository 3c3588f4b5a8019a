package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harun/agentgate/pkg/agent"
	"github.com/harun/agentgate/pkg/conversation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeClient struct {
	mu        sync.Mutex
	agents    []agent.Reference
	getCalls  int
	closed    int
	closeErr  error
	telemetry string
	telErr    error
}

func (c *fakeClient) GetAgent(ctx context.Context, id string) (agent.Reference, error) {
	c.mu.Lock()
	c.getCalls++
	c.mu.Unlock()
	for _, a := range c.agents {
		if a.ID == id {
			return a, nil
		}
	}
	return agent.Reference{}, agent.ErrNotFound
}

func (c *fakeClient) ListAgents(ctx context.Context) agent.Iterator {
	return &sliceIterator{items: c.agents, idx: -1}
}

func (c *fakeClient) CreateThread(ctx context.Context) (string, error) { return "thread_1", nil }

func (c *fakeClient) AddUserMessage(ctx context.Context, threadID, content string) error { return nil }

func (c *fakeClient) StreamRun(ctx context.Context, threadID, agentID string) conversation.Stream {
	return nil
}

func (c *fakeClient) ListMessages(ctx context.Context, threadID string) ([]conversation.Message, error) {
	return nil, nil
}

func (c *fakeClient) TelemetryConnectionString(ctx context.Context) (string, error) {
	return c.telemetry, c.telErr
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return c.closeErr
}

func (c *fakeClient) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// keepSpans keeps exported spans readable after provider shutdown
type keepSpans struct {
	*tracetest.InMemoryExporter
}

func (keepSpans) Shutdown(context.Context) error { return nil }

type sliceIterator struct {
	items []agent.Reference
	idx   int
}

func (it *sliceIterator) Next() bool {
	it.idx++
	return it.idx < len(it.items)
}

func (it *sliceIterator) Current() agent.Reference { return it.items[it.idx] }

func (it *sliceIterator) Err() error { return nil }

func newTestManager(t *testing.T, client *fakeClient, mutate ...func(*Config)) (*Manager, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	cfg := Config{
		AgentID:   "asst_1",
		AgentName: "agent-a",
		NewClient: func(ctx context.Context) (ProjectClient, error) { return client, nil },
		Logger:    zerolog.New(&logs),
	}
	for _, m := range mutate {
		m(&cfg)
	}

	m, err := NewManager(cfg)
	require.NoError(t, err)
	return m, &logs
}

var agentA = agent.Reference{ID: "asst_1", Name: "agent-a", Model: "gpt-4o"}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Config{AgentName: "a"})
	assert.Error(t, err)

	_, err = NewManager(Config{NewClient: func(context.Context) (ProjectClient, error) { return nil, nil }})
	assert.Error(t, err)
}

func TestStartReady(t *testing.T) {
	client := &fakeClient{agents: []agent.Reference{agentA}}
	m, _ := newTestManager(t, client)

	assert.Equal(t, StatusStarting, m.Status())
	assert.Nil(t, m.State())

	st, err := m.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusReady, m.Status())
	assert.Equal(t, agentA, st.Agent)
	assert.Same(t, client, st.Client.(*fakeClient))
	assert.Same(t, st, m.State())
	assert.Equal(t, 0, client.closeCount())

	_, err = m.Start(context.Background())
	assert.Error(t, err, "second start is rejected")
}

func TestStartFallsBackToName(t *testing.T) {
	client := &fakeClient{agents: []agent.Reference{agentA}}
	m, _ := newTestManager(t, client, func(c *Config) { c.AgentID = "asst_gone" })

	st, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, agentA, st.Agent)
}

func TestStartFailures(t *testing.T) {
	t.Run("client factory", func(t *testing.T) {
		m, _ := newTestManager(t, nil, func(c *Config) {
			c.NewClient = func(context.Context) (ProjectClient, error) {
				return nil, errors.New("no credential")
			}
		})

		_, err := m.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no credential")
		assert.Equal(t, StatusFailed, m.Status())
		assert.Nil(t, m.State())
	})

	t.Run("unresolved agent", func(t *testing.T) {
		client := &fakeClient{}
		m, _ := newTestManager(t, client)

		_, err := m.Start(context.Background())
		require.ErrorIs(t, err, agent.ErrUnresolved)
		assert.Equal(t, StatusFailed, m.Status())
		assert.Nil(t, m.State())
		assert.Equal(t, 1, client.closeCount())

		m.Stop()
		assert.Equal(t, 1, client.closeCount(), "teardown runs once")
		assert.Equal(t, StatusFailed, m.Status())
	})
}

func TestTelemetry(t *testing.T) {
	t.Run("missing connection fails fast", func(t *testing.T) {
		client := &fakeClient{agents: []agent.Reference{agentA}}
		m, logs := newTestManager(t, client, func(c *Config) { c.TelemetryEnabled = true })

		_, err := m.Start(context.Background())
		require.ErrorIs(t, err, ErrTelemetryUnavailable)
		assert.Equal(t, StatusFailed, m.Status())
		assert.Equal(t, 0, client.getCalls, "agent is never resolved")
		assert.Equal(t, 1, client.closeCount())
		assert.Contains(t, logs.String(), "Tracing' tab")
	})

	t.Run("lookup error fails fast", func(t *testing.T) {
		lookupErr := errors.New("forbidden")
		client := &fakeClient{agents: []agent.Reference{agentA}, telErr: lookupErr}
		m, _ := newTestManager(t, client, func(c *Config) { c.TelemetryEnabled = true })

		_, err := m.Start(context.Background())
		assert.ErrorIs(t, err, ErrTelemetryUnavailable)
		assert.ErrorIs(t, err, lookupErr)
	})

	t.Run("disabled skips lookup", func(t *testing.T) {
		client := &fakeClient{agents: []agent.Reference{agentA}, telErr: errors.New("unused")}
		m, _ := newTestManager(t, client)

		_, err := m.Start(context.Background())
		assert.NoError(t, err)
	})

	t.Run("enabled", func(t *testing.T) {
		exporter := keepSpans{tracetest.NewInMemoryExporter()}
		client := &fakeClient{
			agents:    []agent.Reference{agentA},
			telemetry: "InstrumentationKey=abc;IngestionEndpoint=https://westus.in.applicationinsights.azure.com/",
		}
		m, _ := newTestManager(t, client, func(c *Config) {
			c.TelemetryEnabled = true
			c.TraceExporter = exporter
		})

		_, err := m.Start(context.Background())
		require.NoError(t, err)
		require.NotNil(t, m.tracer)

		m.Stop()
		assert.NotEmpty(t, exporter.GetSpans(), "resolution span is flushed on stop")
	})
}

func TestStopOnce(t *testing.T) {
	client := &fakeClient{agents: []agent.Reference{agentA}, closeErr: errors.New("already gone")}
	m, logs := newTestManager(t, client)

	_, err := m.Start(context.Background())
	require.NoError(t, err)

	m.Stop()
	m.Stop()

	assert.Equal(t, StatusStopped, m.Status())
	assert.Nil(t, m.State())
	assert.Equal(t, 1, client.closeCount())
	assert.Contains(t, logs.String(), "already gone", "teardown errors are logged")
	assert.Equal(t, 2, strings.Count(logs.String(), "Application stopped"))
}

func TestRun(t *testing.T) {
	t.Run("serve returns", func(t *testing.T) {
		client := &fakeClient{agents: []agent.Reference{agentA}}
		m, _ := newTestManager(t, client)

		var served *State
		err := m.Run(context.Background(), func(ctx context.Context, st *State) error {
			served = st
			return nil
		})
		require.NoError(t, err)
		require.NotNil(t, served)
		assert.Equal(t, agentA, served.Agent)
		assert.Equal(t, StatusStopped, m.Status())
		assert.Equal(t, 1, client.closeCount())
	})

	t.Run("context cancelled", func(t *testing.T) {
		client := &fakeClient{agents: []agent.Reference{agentA}}
		m, _ := newTestManager(t, client)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- m.Run(ctx, func(ctx context.Context, st *State) error {
				<-ctx.Done()
				return nil
			})
		}()

		require.Eventually(t, func() bool { return m.Status() == StatusReady }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("run did not return")
		}
		assert.Equal(t, StatusStopped, m.Status())
	})

	t.Run("serve error", func(t *testing.T) {
		client := &fakeClient{agents: []agent.Reference{agentA}}
		m, _ := newTestManager(t, client)

		serveErr := errors.New("address in use")
		err := m.Run(context.Background(), func(ctx context.Context, st *State) error { return serveErr })
		assert.ErrorIs(t, err, serveErr)
		assert.Equal(t, 1, client.closeCount())
	})

	t.Run("start failure skips serve", func(t *testing.T) {
		m, _ := newTestManager(t, &fakeClient{})

		called := false
		err := m.Run(context.Background(), func(ctx context.Context, st *State) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, agent.ErrUnresolved)
		assert.False(t, called)
	})
}

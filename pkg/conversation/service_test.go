package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/harun/agentgate/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	mu      sync.Mutex
	threads map[string]string
	getErr  error
}

func newMapStore() *mapStore { return &mapStore{threads: map[string]string{}} }

func (s *mapStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	id, ok := s.threads[sessionID]
	return id, ok, nil
}

func (s *mapStore) Set(ctx context.Context, sessionID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[sessionID] = threadID
	return nil
}

type fakeBackend struct {
	mu        sync.Mutex
	threads   int
	messages  map[string][]Message
	chunks    []string
	streamErr error
	addErr    error

	pulled int
}

func newFakeBackend(chunks ...string) *fakeBackend {
	return &fakeBackend{messages: map[string][]Message{}, chunks: chunks}
}

func (b *fakeBackend) CreateThread(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.threads++
	return fmt.Sprintf("thread_%d", b.threads), nil
}

func (b *fakeBackend) AddUserMessage(ctx context.Context, threadID, content string) error {
	if b.addErr != nil {
		return b.addErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[threadID] = append(b.messages[threadID], Message{Role: "user", Content: content, CreatedAt: time.Unix(1700000000, 0).UTC()})
	return nil
}

func (b *fakeBackend) StreamRun(ctx context.Context, threadID, agentID string) Stream {
	return &sliceStream{ctx: ctx, backend: b, idx: -1}
}

func (b *fakeBackend) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages[threadID], nil
}

// sliceStream produces chunks one at a time and stops once ctx is done
type sliceStream struct {
	ctx     context.Context
	backend *fakeBackend
	idx     int
	err     error
	closed  bool
}

func (s *sliceStream) Next() bool {
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.idx+1 >= len(s.backend.chunks) {
		s.err = s.backend.streamErr
		return false
	}
	s.idx++
	s.backend.pulled++
	return true
}

func (s *sliceStream) Current() Chunk { return Chunk{Content: s.backend.chunks[s.idx]} }
func (s *sliceStream) Err() error     { return s.err }
func (s *sliceStream) Close() error   { s.closed = true; return nil }

func newTestService(t *testing.T, b Backend, store ThreadStore) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics()
	svc, err := NewService(ServiceConfig{
		Backend: b,
		Threads: store,
		Logger:  zerolog.Nop(),
		Metrics: m,
	})
	require.NoError(t, err)
	return svc, m
}

func collect(t *testing.T, s Stream) []string {
	t.Helper()
	var out []string
	for s.Next() {
		out = append(out, s.Current().Content)
	}
	return out
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceConfig{Threads: newMapStore()})
	assert.Error(t, err)

	_, err = NewService(ServiceConfig{Backend: newFakeBackend()})
	assert.Error(t, err)
}

func TestSendStreamsChunks(t *testing.T) {
	backend := newFakeBackend("Hel", "lo", "!")
	svc, m := newTestService(t, backend, newMapStore())

	stream, err := svc.Send(context.Background(), "asst_1", "sess-1", "hi")
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo", "!"}, collect(t, stream))
	require.NoError(t, stream.Err())
	require.NoError(t, stream.Close())

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ChatChunksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatStreamsTotal.WithLabelValues(metrics.StreamCompleted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ChatStreamsActive))
}

func TestSendReusesSessionThread(t *testing.T) {
	backend := newFakeBackend("ok")
	store := newMapStore()
	svc, m := newTestService(t, backend, store)

	for i := 0; i < 3; i++ {
		stream, err := svc.Send(context.Background(), "asst_1", "sess-1", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
		collect(t, stream)
		require.NoError(t, stream.Close())
	}

	assert.Equal(t, 1, backend.threads)
	assert.Len(t, backend.messages["thread_1"], 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ThreadsCreated))

	stream, err := svc.Send(context.Background(), "asst_1", "sess-2", "other")
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	assert.Equal(t, 2, backend.threads)
}

func TestSendCancellationStopsProducer(t *testing.T) {
	chunks := make([]string, 100)
	for i := range chunks {
		chunks[i] = "x"
	}
	backend := newFakeBackend(chunks...)
	svc, m := newTestService(t, backend, newMapStore())

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := svc.Send(ctx, "asst_1", "sess-1", "hi")
	require.NoError(t, err)

	require.True(t, stream.Next())
	cancel()

	assert.False(t, stream.Next())
	assert.ErrorIs(t, stream.Err(), context.Canceled)
	require.NoError(t, stream.Close())

	assert.Equal(t, 1, backend.pulled, "producer must stop once the request is cancelled")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatStreamsTotal.WithLabelValues(metrics.StreamCancelled)))
}

func TestSendStreamError(t *testing.T) {
	backend := newFakeBackend("partial")
	backend.streamErr = errors.New("run failed: rate limit")
	svc, m := newTestService(t, backend, newMapStore())

	stream, err := svc.Send(context.Background(), "asst_1", "sess-1", "hi")
	require.NoError(t, err)

	assert.Equal(t, []string{"partial"}, collect(t, stream))
	assert.EqualError(t, stream.Err(), "run failed: rate limit")
	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatStreamsTotal.WithLabelValues(metrics.StreamFailed)))
}

func TestSendAddMessageError(t *testing.T) {
	backend := newFakeBackend()
	backend.addErr = errors.New("thread busy")
	svc, _ := newTestService(t, backend, newMapStore())

	_, err := svc.Send(context.Background(), "asst_1", "sess-1", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "thread busy")
}

func TestHistory(t *testing.T) {
	t.Run("new session is empty not nil", func(t *testing.T) {
		svc, _ := newTestService(t, newFakeBackend(), newMapStore())

		messages, err := svc.History(context.Background(), "sess-new")

		require.NoError(t, err)
		assert.NotNil(t, messages)
		assert.Empty(t, messages)
	})

	t.Run("returns thread messages", func(t *testing.T) {
		backend := newFakeBackend("reply")
		svc, _ := newTestService(t, backend, newMapStore())

		stream, err := svc.Send(context.Background(), "asst_1", "sess-1", "hello")
		require.NoError(t, err)
		require.NoError(t, stream.Close())

		messages, err := svc.History(context.Background(), "sess-1")

		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "user", messages[0].Role)
		assert.Equal(t, "hello", messages[0].Content)
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMapStore()
		store.getErr = errors.New("redis down")
		svc, _ := newTestService(t, newFakeBackend(), store)

		_, err := svc.History(context.Background(), "sess-1")
		assert.Error(t, err)
	})
}

// Package conversation binds browser sessions to remote threads and streams
// agent replies as a pull-based sequence of chunks.
package conversation

import (
	"context"
	"time"
)

// Chunk is one streamed text delta
type Chunk struct {
	Content string `json:"content"`
}

// Message is one entry of a thread's history
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Stream yields chunks lazily. Nothing is read from the remote service until
// Next is called, and cancelling the context the stream was opened with
// aborts the read in progress. Close must always be called.
type Stream interface {
	Next() bool
	Current() Chunk
	Err() error
	Close() error
}

// Backend is the remote thread API
type Backend interface {
	CreateThread(ctx context.Context) (string, error)
	AddUserMessage(ctx context.Context, threadID, content string) error
	StreamRun(ctx context.Context, threadID, agentID string) Stream
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}

// ThreadStore maps browser session IDs to remote thread IDs
type ThreadStore interface {
	Get(ctx context.Context, sessionID string) (threadID string, ok bool, err error)
	Set(ctx context.Context, sessionID, threadID string) error
}

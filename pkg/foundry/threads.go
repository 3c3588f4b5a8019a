package foundry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harun/agentgate/pkg/conversation"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// ErrRunFailed is returned by a run stream when the service reports the run
// as failed
var ErrRunFailed = errors.New("run failed")

// Stream event types handled by runStream
const (
	eventMessageDelta = "thread.message.delta"
	eventRunFailed    = "thread.run.failed"
)

// CreateThread creates an empty thread
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}

	thread, err := c.api.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return thread.ID, nil
}

// AddUserMessage appends a user message to a thread
func (c *Client) AddUserMessage(ctx context.Context, threadID, content string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	_, err := c.api.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(content),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}
	return nil
}

// ListMessages returns every message of a thread, oldest first
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]conversation.Message, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	pager := c.api.Beta.Threads.Messages.ListAutoPaging(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderAsc,
	})

	messages := []conversation.Message{}
	for pager.Next() {
		m := pager.Current()
		messages = append(messages, conversation.Message{
			Role:      string(m.Role),
			Content:   messageText(m.Content),
			CreatedAt: time.Unix(m.CreatedAt, 0).UTC(),
		})
	}
	if err := pager.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

// StreamRun starts a run of agentID on the thread. The request is sent on
// the first call to Next.
func (c *Client) StreamRun(ctx context.Context, threadID, agentID string) conversation.Stream {
	if err := c.checkOpen(); err != nil {
		return &runStream{err: err}
	}
	if threadID == "" {
		return &runStream{err: fmt.Errorf("thread id is required")}
	}

	return &runStream{
		ctx: ctx,
		open: func() *ssestream.Stream[openai.AssistantStreamEventUnion] {
			return c.api.Beta.Threads.Runs.NewStreaming(ctx, threadID, openai.BetaThreadRunNewParams{
				AssistantID: agentID,
			})
		},
	}
}

// runStream turns assistant stream events into text chunks
type runStream struct {
	ctx    context.Context
	open   func() *ssestream.Stream[openai.AssistantStreamEventUnion]
	events *ssestream.Stream[openai.AssistantStreamEventUnion]
	cur    conversation.Chunk
	err    error
}

func (s *runStream) Next() bool {
	if s.err != nil || s.open == nil {
		return false
	}
	if s.events == nil {
		s.events = s.open()
	}

	for s.events.Next() {
		ev := s.events.Current()
		switch ev.Event {
		case eventMessageDelta:
			text := deltaText(ev.AsThreadMessageDelta().Data.Delta)
			if text == "" {
				continue
			}
			s.cur = conversation.Chunk{Content: text}
			return true

		case eventRunFailed:
			lastErr := ev.AsThreadRunFailed().Data.LastError
			s.err = fmt.Errorf("%w: %s", ErrRunFailed, lastErr.Message)
			return false
		}
	}

	if err := s.events.Err(); err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		s.err = err
	}
	return false
}

func (s *runStream) Current() conversation.Chunk {
	return s.cur
}

func (s *runStream) Err() error {
	return s.err
}

func (s *runStream) Close() error {
	if s.events == nil {
		return nil
	}
	return s.events.Close()
}

func deltaText(delta openai.MessageDelta) string {
	var b strings.Builder
	for _, part := range delta.Content {
		if part.Type == "text" {
			b.WriteString(part.Text.Value)
		}
	}
	return b.String()
}

func messageText(content []openai.MessageContentUnion) string {
	var b strings.Builder
	for _, part := range content {
		if part.Type == "text" {
			b.WriteString(part.Text.Value)
		}
	}
	return b.String()
}

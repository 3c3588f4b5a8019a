package foundry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/harun/agentgate/pkg/agent"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/pagination"
)

const agentPageSize = 100

// GetAgent fetches one agent by ID
func (c *Client) GetAgent(ctx context.Context, id string) (agent.Reference, error) {
	if err := c.checkOpen(); err != nil {
		return agent.Reference{}, err
	}

	a, err := c.api.Beta.Assistants.Get(ctx, id)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return agent.Reference{}, fmt.Errorf("agent %s: %w", id, agent.ErrNotFound)
		}
		return agent.Reference{}, fmt.Errorf("failed to get agent %s: %w", id, err)
	}

	return toReference(*a), nil
}

// ListAgents iterates every agent in the project. Pages are fetched on
// demand, so stopping early saves the remaining requests.
func (c *Client) ListAgents(ctx context.Context) agent.Iterator {
	if err := c.checkOpen(); err != nil {
		return &agentIterator{err: err}
	}

	pager := c.api.Beta.Assistants.ListAutoPaging(ctx, openai.BetaAssistantListParams{
		Limit: openai.Int(agentPageSize),
	})
	return &agentIterator{pager: pager}
}

type agentIterator struct {
	pager *pagination.CursorPageAutoPager[openai.Assistant]
	err   error
}

func (it *agentIterator) Next() bool {
	if it.pager == nil {
		return false
	}
	return it.pager.Next()
}

func (it *agentIterator) Current() agent.Reference {
	return toReference(it.pager.Current())
}

func (it *agentIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	if err := it.pager.Err(); err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}
	return nil
}

func toReference(a openai.Assistant) agent.Reference {
	return agent.Reference{
		ID:    a.ID,
		Name:  a.Name,
		Model: a.Model,
	}
}

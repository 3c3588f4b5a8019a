package agent

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a Directory when no agent has the requested ID
	ErrNotFound = errors.New("agent not found")

	// ErrUnresolved is returned when neither the ID nor the name identify an agent
	ErrUnresolved = errors.New("no agent found")
)

// Reference is a read-only handle to a remote agent
type Reference struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model"`
}

// Directory looks up remote agents
type Directory interface {
	// GetAgent fetches one agent. It returns an error wrapping ErrNotFound
	// when the service reports the ID as absent.
	GetAgent(ctx context.Context, id string) (Reference, error)

	// ListAgents returns a lazy iterator over every agent in the project
	ListAgents(ctx context.Context) Iterator
}

// Iterator walks a lazily fetched agent listing
//
//	for it.Next() {
//		ref := it.Current()
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type Iterator interface {
	Next() bool
	Current() Reference
	Err() error
}

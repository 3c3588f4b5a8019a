package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/harun/agentgate/internal/metrics"
	"github.com/harun/agentgate/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/harun/agentgate/pkg/agent"

// Resolution methods used as metric labels
const (
	MethodID   = "id"
	MethodName = "name"
)

// ResolverConfig configures a Resolver
type ResolverConfig struct {
	Directory Directory
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

// Resolver turns a configured agent ID and name into a Reference
type Resolver struct {
	dir     Directory
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a resolver
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Directory == nil {
		return nil, fmt.Errorf("directory is required")
	}

	return &Resolver{
		dir:     cfg.Directory,
		logger:  cfg.Logger.With().Str("component", "resolver").Logger(),
		metrics: cfg.Metrics,
	}, nil
}

// Resolve returns exactly one agent or an error wrapping ErrUnresolved.
// id may be empty. A failed ID lookup is never retried; it falls through to
// the name search whatever the cause.
func (r *Resolver) Resolve(ctx context.Context, id, name string) (Reference, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "agent.resolve",
		attribute.String("agent.id", id),
		attribute.String("agent.name", name),
	)
	defer span.End()

	if id != "" {
		ref, ok := r.lookupByID(ctx, id)
		if ok {
			span.SetAttributes(attribute.String("agent.resolved_by", MethodID))
			return ref, nil
		}
	}

	if name == "" {
		r.metrics.RecordResolution(MethodName, metrics.ResolutionUnresolved)
		err := fmt.Errorf("%w: agent name is not configured", ErrUnresolved)
		span.SetStatus(codes.Error, err.Error())
		return Reference{}, err
	}

	ref, err := r.searchByName(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reference{}, err
	}

	span.SetAttributes(attribute.String("agent.resolved_by", MethodName))
	return ref, nil
}

func (r *Resolver) lookupByID(ctx context.Context, id string) (Reference, bool) {
	ref, err := r.dir.GetAgent(ctx, id)
	if err == nil {
		r.metrics.RecordResolution(MethodID, metrics.ResolutionFound)
		r.logger.Info().
			Str("agent_id", ref.ID).
			Str("model", ref.Model).
			Msg("Fetched agent by ID")
		return ref, true
	}

	if errors.Is(err, ErrNotFound) {
		r.metrics.RecordResolution(MethodID, metrics.ResolutionNotFound)
		r.logger.Warn().
			Err(err).
			Str("agent_id", id).
			Str("cause", metrics.ResolutionNotFound).
			Msg("Agent ID not found, falling back to name search")
		return Reference{}, false
	}

	r.metrics.RecordResolution(MethodID, metrics.ResolutionLookupError)
	r.logger.Error().
		Err(err).
		Str("agent_id", id).
		Str("cause", metrics.ResolutionLookupError).
		Msg("Error fetching agent, falling back to name search")
	return Reference{}, false
}

func (r *Resolver) searchByName(ctx context.Context, name string) (Reference, error) {
	it := r.dir.ListAgents(ctx)

	for it.Next() {
		ref := it.Current()
		if ref.Name == name {
			r.metrics.RecordResolution(MethodName, metrics.ResolutionFound)
			r.logger.Info().
				Str("agent_id", ref.ID).
				Str("agent_name", name).
				Msg("Found agent by name")
			return ref, nil
		}
	}

	r.metrics.RecordResolution(MethodName, metrics.ResolutionUnresolved)

	if err := it.Err(); err != nil {
		r.logger.Error().Err(err).Str("agent_name", name).Msg("Failed to list agents")
		return Reference{}, fmt.Errorf("%w: failed to list agents: %w", ErrUnresolved, err)
	}

	r.logger.Error().Str("agent_name", name).Msg("No agent found with configured name")
	return Reference{}, fmt.Errorf("%w: no agent named %q; set AZURE_EXISTING_AGENT_ID or AZURE_AI_AGENT_NAME", ErrUnresolved, name)
}

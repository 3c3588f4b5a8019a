// Package agent resolves the remote agent this process serves.
//
// Invariants:
// - A Reference is created once by the Resolver and never mutated.
// - Lookup by ID is attempted first; any failure falls through to a lazy name
//   search that stops at the first match.
// - Not-found and transient lookup failures are logged and counted separately.
//
// Usage:
//
//	resolver, _ := agent.NewResolver(agent.ResolverConfig{Directory: client, Logger: log})
//	ref, err := resolver.Resolve(ctx, cfg.Agent.ID, cfg.Agent.Name)
//	if errors.Is(err, agent.ErrUnresolved) {
//		// fatal: refuse to start
//	}
package agent

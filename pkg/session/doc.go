// Package session stores which remote thread belongs to which browser session.
//
// Invariants:
// - Session IDs are validated before they reach a backend.
// - A binding expires TTL after it was last written.
// - Stores are safe for concurrent use.
//
// Usage:
//
//	store, _ := session.Open(ctx, session.Config{TTL: 24 * time.Hour}, logger)
//	defer store.Close()
//	_ = store.Set(ctx, "V1StGXR8_Z5jdHi6B-myT", "thread_abc")
//	threadID, ok, _ := store.Get(ctx, "V1StGXR8_Z5jdHi6B-myT")
package session

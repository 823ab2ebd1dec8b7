package common

import (
	"context"
	"strings"
)

// Every mutation to a tracked record carries an explicit actor for audit
// attribution. There is no implicit "current user": services take the actor
// as a parameter, and the HTTP layer resolves it once per request from the
// X-Corvus-Actor header via this context plumbing.

type contextKey int

const actorContextKey contextKey = iota

// DefaultActor is used when a request supplies no actor header.
const DefaultActor = "api"

// WithActor stores the acting principal in the request context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext retrieves the actor from context, or "" if absent.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey).(string)
	return actor
}

// ResolveActor picks the acting principal for a mutation: the explicitly
// passed actor wins, then the request context, then DefaultActor.
func ResolveActor(ctx context.Context, actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	if actor = strings.TrimSpace(ActorFromContext(ctx)); actor != "" {
		return actor
	}
	return DefaultActor
}

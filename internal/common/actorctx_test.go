package common

import (
	"context"
	"testing"
)

func TestResolveActor_ExplicitWins(t *testing.T) {
	ctx := WithActor(context.Background(), "web-user")
	if got := ResolveActor(ctx, "importer"); got != "importer" {
		t.Errorf("ResolveActor() = %q, want %q", got, "importer")
	}
}

func TestResolveActor_FallsBackToContext(t *testing.T) {
	ctx := WithActor(context.Background(), "web-user")
	if got := ResolveActor(ctx, ""); got != "web-user" {
		t.Errorf("ResolveActor() = %q, want %q", got, "web-user")
	}
}

func TestResolveActor_Default(t *testing.T) {
	if got := ResolveActor(context.Background(), "  "); got != DefaultActor {
		t.Errorf("ResolveActor() = %q, want %q", got, DefaultActor)
	}
}

func TestActorFromContext_Absent(t *testing.T) {
	if got := ActorFromContext(context.Background()); got != "" {
		t.Errorf("ActorFromContext() = %q, want empty", got)
	}
}

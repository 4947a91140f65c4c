package server

import (
	"context"
	"net/http"
	"strings"
)

// Actor identifies who is acting. The console sits behind the platform
// gateway, which authenticates and forwards identity as headers.
type Actor struct {
	ID   string
	Role string
}

type actorContextKey struct{}

func withActorValue(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

func currentActor(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorContextKey{}).(Actor)
	return a, ok
}

func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := Actor{
			ID:   strings.TrimSpace(r.Header.Get("X-Actor-ID")),
			Role: strings.TrimSpace(strings.ToLower(r.Header.Get("X-Actor-Role"))),
		}
		next.ServeHTTP(w, r.WithContext(withActorValue(r.Context(), a)))
	})
}

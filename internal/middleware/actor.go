package middleware

import (
	"context"
	"net/http"
	"strconv"
)

// ActorHeader carries the id of the user performing a mutation.
// Authentication happens upstream; the header is trusted as-is.
const ActorHeader = "X-Actor-ID"

type actorKey struct{}

// Actor stores the X-Actor-ID value in the request context. Missing or malformed values mean no actor.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get(ActorHeader); raw != "" {
			if id, err := strconv.Atoi(raw); err == nil && id > 0 {
				r = r.WithContext(WithActorID(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func WithActorID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// ActorID returns the actor stored by Actor, or 0.
func ActorID(ctx context.Context) int {
	id, _ := ctx.Value(actorKey{}).(int)
	return id
}

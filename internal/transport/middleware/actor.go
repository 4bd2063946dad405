package middleware

import (
	"net/http"

	"github.com/heartmarshall/gazetteer-backend/pkg/ctxutil"
)

// ActorHeader names the caller-supplied contributor identity. The value is
// opaque and unauthenticated; it only ends up in changeset author tags,
// decision reviewers and logs.
const ActorHeader = "X-Actor"

// Actor copies the X-Actor header into the request context.
// Values longer than ctxutil.MaxActorLen are rejected with 400.
func Actor() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := r.Header.Get(ActorHeader)
			if len(actor) > ctxutil.MaxActorLen {
				http.Error(w, "actor header too long", http.StatusBadRequest)
				return
			}
			if actor != "" {
				r = r.WithContext(ctxutil.WithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

package authapi

import (
	"context"
	"net/http"

	"passage/cmd/internal/auth/session"
	"passage/cmd/security/token"
)

// Identity is the authenticated session and principal of a request.
type Identity struct {
	Session   session.Session
	Principal session.Principal
}

type identityKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by Authenticate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Authenticate resolves the session cookie of each request.
//
// A valid session is attached to the request context; a renewed session gets
// its cookie re-issued with the new expiry. A cookie that does not resolve to a
// session is cleared. Requests without a valid session still reach next,
// unauthenticated.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := h.sessionTokenFromCookie(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if !token.Valid(tok) {
			h.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		res, err := h.sessions.Validate(r.Context(), h.now(), tok)
		if err != nil {
			h.log.Error("auth.session.validate.fail", "err", err)
			writeInternal(w)
			return
		}
		if !res.Authenticated() {
			h.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if res.Renewed {
			h.setSessionCookie(w, tok, res.Session.ExpiresAt)
		}

		ctx := withIdentity(r.Context(), Identity{Session: *res.Session, Principal: *res.Principal})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

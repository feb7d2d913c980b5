package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/campusnet/campusauth"
)

type principalKey struct{}

// PrincipalFrom returns the identity attached by requireAuth, or nil on
// unguarded routes.
func PrincipalFrom(ctx context.Context) *campusauth.Principal {
	p, _ := ctx.Value(principalKey{}).(*campusauth.Principal)
	return p
}

// requireAuth is the gate. The access credential is read from the
// accessToken cookie first, then from a Bearer header for non-browser
// callers. All failures produce the same 401 body; expiry additionally
// carries the TOKEN_EXPIRED code so clients know a refresh may salvage the
// session.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerOrCookie(r)
		if raw == "" {
			writeError(w, campusauth.ErrTokenInvalid)
			return
		}

		principal, err := s.engine.Authenticate(r.Context(), raw)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole fences a tenant surface: a valid principal of the other role
// gets a generic forbidden, never a hint about what lives behind the route.
func (s *Server) requireRole(role campusauth.Role, next http.Handler) http.Handler {
	return s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := PrincipalFrom(r.Context()); p == nil || p.Role != role {
			writeError(w, campusauth.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func bearerOrCookie(r *http.Request) string {
	if c, err := r.Cookie(accessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

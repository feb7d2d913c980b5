// Package cookie centralizes the transport attributes for auth cookies.
//
// Every call site that sets or clears accessToken/refreshToken must go
// through one [Policy] value; attribute divergence between call sites is the
// defect class this package exists to eliminate. Clearing in particular only
// works in browsers when the attributes match the ones used to set.
package cookie

import (
	"net/http"
	"strings"
	"time"
)

// Config is the deployment-derived input to [NewPolicy].
type Config struct {
	// Production marks a deployment that serves over HTTPS.
	Production bool
	// SameSite is "lax", "strict", or "none"; anything else falls back to lax.
	SameSite string
	// Domain optionally scopes the cookies to a parent domain.
	Domain string
}

// Policy is the fixed attribute set applied to every auth cookie. Derive it
// once from configuration; only maxAge varies per cookie.
type Policy struct {
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	Path     string
	Domain   string
}

// NewPolicy derives the cookie policy from deployment configuration.
// SameSite=None forces Secure regardless of environment: browsers drop
// None cookies without the Secure attribute.
func NewPolicy(cfg Config) Policy {
	var sameSite http.SameSite
	switch strings.ToLower(cfg.SameSite) {
	case "none":
		sameSite = http.SameSiteNoneMode
	case "strict":
		sameSite = http.SameSiteStrictMode
	default:
		sameSite = http.SameSiteLaxMode
	}

	return Policy{
		HTTPOnly: true,
		Secure:   cfg.Production || sameSite == http.SameSiteNoneMode,
		SameSite: sameSite,
		Path:     "/",
		Domain:   cfg.Domain,
	}
}

// Set writes the named cookie with the policy's attributes and the given
// lifetime.
func (p Policy) Set(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: p.HTTPOnly,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}

// Clear expires the named cookie using the identical attributes it was set
// with.
func (p Policy) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     p.Path,
		Domain:   p.Domain,
		MaxAge:   -1,
		HttpOnly: p.HTTPOnly,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	})
}

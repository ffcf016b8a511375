package http

import (
	"net/http"
	"strings"
)

const (
	HeaderUserID     = "X-User-Id"
	HeaderAuthNeeded = "X-Auth-Needed"

	tokenCookieName = "token"
	bearerPrefix    = "Bearer "
)

// ExtractCredential returns the session token from the Authorization
// header, falling back to the token cookie.
func ExtractCredential(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		if tok := strings.TrimSpace(auth[len(bearerPrefix):]); tok != "" {
			return tok, true
		}
	}
	if c, err := r.Cookie(tokenCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// stripCredential removes the raw token from r before it is forwarded.
// Other cookies are preserved.
func stripCredential(r *http.Request) {
	r.Header.Del("Authorization")

	cookies := r.Cookies()
	r.Header.Del("Cookie")
	for _, c := range cookies {
		if c.Name == tokenCookieName {
			continue
		}
		r.AddCookie(c)
	}
}

func sessionCookie(tok string) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// clearedSessionCookie renders with Max-Age=0.
func clearedSessionCookie() *http.Cookie {
	c := sessionCookie("")
	c.MaxAge = -1
	return c
}

package http

import (
	"net/http"
	"strings"
	"time"
)

const DefaultSessionMaxAge = 7 * 24 * time.Hour

// CookieConfig describes the session cookie. Browsers carry the token in it;
// other clients may send it as a bearer token instead.
type CookieConfig struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return "token"
	}
	return c.Name
}

func (c CookieConfig) set(w http.ResponseWriter, token string) {
	maxAge := c.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// token returns the session token from the cookie, falling back to an
// Authorization bearer header.
func (c CookieConfig) token(r *http.Request) string {
	if ck, err := r.Cookie(c.name()); err == nil && ck.Value != "" {
		return ck.Value
	}
	raw := r.Header.Get("Authorization")
	if len(raw) > len("Bearer ") && strings.EqualFold(raw[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(raw[len("Bearer "):])
	}
	return ""
}

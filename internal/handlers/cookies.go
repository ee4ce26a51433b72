package handlers

import (
	"net/http"
	"time"

	"github.com/videotube/backend/internal/models"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

// CookieOptions controls the attributes of the session cookies. They are
// always HttpOnly.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

// ParseSameSite maps lax|strict|none onto http.SameSite.
func ParseSameSite(value string) http.SameSite {
	switch value {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

func (o CookieOptions) cookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   o.Domain,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
	if value == "" {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else if !expires.IsZero() {
		c.Expires = expires
	}
	return c
}

func (o CookieOptions) setSession(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, o.cookie(accessCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, o.cookie(refreshCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func (o CookieOptions) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, o.cookie(accessCookie, "", time.Time{}))
	http.SetCookie(w, o.cookie(refreshCookie, "", time.Time{}))
}

package auth

import (
	"net/http"
	"time"

	"github.com/leo-rullani/backend-video-flix/internal/models"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// CookiePolicy controls the attributes of the credential cookies.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
}

func (p CookiePolicy) sameSite() http.SameSite {
	if p.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return p.SameSite
}

// SetTokenCookies writes both credential cookies.
func (p CookiePolicy) SetTokenCookies(w http.ResponseWriter, tokens models.TokenPair) {
	p.setCookie(w, AccessCookieName, tokens.AccessToken, tokens.AccessExpiresAt)
	p.setCookie(w, RefreshCookieName, tokens.RefreshToken, tokens.RefreshExpiresAt)
}

// SetAccessCookie writes the access token cookie only.
func (p CookiePolicy) SetAccessCookie(w http.ResponseWriter, token string, expires time.Time) {
	p.setCookie(w, AccessCookieName, token, expires)
}

// ClearTokenCookies expires both credential cookies.
func (p CookiePolicy) ClearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0).UTC(),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   p.Secure,
			SameSite: p.sameSite(),
		})
	}
}

func (p CookiePolicy) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	if value == "" {
		return
	}
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.sameSite(),
	})
}

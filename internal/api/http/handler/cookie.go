package handler

import (
	"net/http"
	"strings"
	"time"
)

// CookiePolicy describes how the refresh token travels as a cookie.
type CookiePolicy struct {
	Name       string
	Domain     string
	Path       string
	CrossSite  bool
	Production bool
}

func (p CookiePolicy) sameSite() (http.SameSite, bool) {
	if p.CrossSite {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, p.Production
}

func (p CookiePolicy) setRefreshCookie(w http.ResponseWriter, value string, exp time.Time) {
	sameSite, secure := p.sameSite()
	http.SetCookie(w, &http.Cookie{
		Name:     p.Name,
		Value:    value,
		Path:     p.Path,
		Domain:   p.Domain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (p CookiePolicy) expireCookie(w http.ResponseWriter) {
	sameSite, secure := p.sameSite()
	http.SetCookie(w, &http.Cookie{
		Name:     p.Name,
		Value:    "",
		Path:     p.Path,
		Domain:   p.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}

func (p CookiePolicy) refreshFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(p.Name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	return v, v != ""
}

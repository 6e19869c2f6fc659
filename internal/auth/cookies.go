package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// CookieConfig is the single source of cookie attributes. Every auth cookie is
// written through Set and removed through Clear.
type CookieConfig struct {
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	// MaxAge is the lifetime of cookies set without one of their own.
	MaxAge time.Duration
	Domain string
	Path   string
}

var ErrInsecureSameSiteNone = errors.New("SameSite=None cookies must be Secure")

// Validate rejects attribute combinations browsers refuse to store.
func (c CookieConfig) Validate() error {
	if c.SameSite == http.SameSiteNoneMode && !c.Secure {
		return ErrInsecureSameSiteNone
	}
	return nil
}

// DefaultCookieConfig returns secure cross-site cookies, or lax insecure ones in
// development where the UI is served over plain http.
func DefaultCookieConfig(dev bool) CookieConfig {
	if dev {
		return CookieConfig{HTTPOnly: true, Secure: false, SameSite: http.SameSiteLaxMode, Path: "/"}
	}
	return CookieConfig{HTTPOnly: true, Secure: true, SameSite: http.SameSiteNoneMode, Path: "/"}
}

// ParseSameSite maps a flag value onto http.SameSite.
func ParseSameSite(value string) (http.SameSite, error) {
	switch strings.ToLower(value) {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	case "", "default":
		return http.SameSiteDefaultMode, nil
	default:
		return 0, fmt.Errorf("invalid same-site mode %q", value)
	}
}

func (c CookieConfig) cookie(name, value string) *http.Cookie {
	path := c.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.Domain,
		HttpOnly: c.HTTPOnly,
		// browsers drop SameSite=None cookies that are not Secure
		Secure:   c.Secure || c.SameSite == http.SameSiteNoneMode,
		SameSite: c.SameSite,
	}
}

// Set writes cookie name with a lifetime of maxAge, or c.MaxAge when maxAge is
// zero.
func (c CookieConfig) Set(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	if maxAge == 0 {
		maxAge = c.MaxAge
	}
	ck := c.cookie(name, value)
	ck.MaxAge = int(maxAge.Seconds())
	ck.Expires = time.Now().Add(maxAge)
	http.SetCookie(w, ck)
}

// Clear expires cookie name using the same attributes it was set with.
func (c CookieConfig) Clear(w http.ResponseWriter, name string) {
	ck := c.cookie(name, "")
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	http.SetCookie(w, ck)
}

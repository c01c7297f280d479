package httpx

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DeviceCookieName identifies the browser a resolution runs for.
const DeviceCookieName = "wsd_device"

const (
	oauthStateCookie  = "oauth_state"
	oauthNonceCookie  = "oauth_nonce"
	postLoginCookie   = "post_login_redirect"
	oauthCookieMaxAge = 600

	// Browsers cap persistent cookies at 400 days.
	deviceCookieMaxAge = 400 * 24 * 60 * 60
)

// CookieDomain returns the domain device cookies are scoped to. An explicit
// value wins; otherwise the registrable domain of publicURL is used so every
// subdomain of the product shares one device id. Hosts without a registrable
// domain (localhost, IPs) get a host-only cookie.
func CookieDomain(explicit, publicURL string) string {
	if d := strings.TrimSpace(explicit); d != "" {
		return d
	}
	if publicURL == "" {
		return ""
	}
	u, err := url.Parse(publicURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// cookieWriter sets cookies with the attributes every cookie of this service shares.
type cookieWriter struct {
	domain string
}

func (c cookieWriter) set(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// clear expires a cookie, mirroring the attributes used when it was set.
func (c cookieWriter) clear(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.domain,
		HttpOnly: true,
		Secure:   isSecure(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}

package browser

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"mc_cid": true,
	"mc_eid": true,
	"ref":    true,
}

// CanonicalURL is the deduplication key for an article address: lowercase
// scheme and host, no fragment, no tracking parameters, no trailing slash.
// Unparseable input is returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if strings.HasPrefix(strings.ToLower(key), "utm_") || trackingParams[strings.ToLower(key)] {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}

	return u.String()
}

// RegistrableDomain returns the eTLD+1 of a URL or bare host, e.g. "blog.example.co.uk" -> "example.co.uk".
func RegistrableDomain(urlOrHost string) string {
	host := urlOrHost
	if strings.Contains(urlOrHost, "://") {
		u, err := url.Parse(urlOrHost)
		if err != nil {
			return ""
		}
		host = u.Hostname()
	}

	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return ""
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// SameSite reports whether both addresses share a registrable domain.
func SameSite(a, b string) bool {
	da := RegistrableDomain(a)
	return da != "" && da == RegistrableDomain(b)
}

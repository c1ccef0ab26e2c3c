package source

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Settings.RefreshInterval) * time.Second
}

// Host returns the index URL host without a leading "www.".
func (c *Config) Host() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// ExcludedDomains is the reference exclusion list including the source's own domain.
func (c *Config) ExcludedDomains() []string {
	domains := append([]string(nil), c.References.ExcludedDomains...)
	if host := c.Host(); host != "" {
		domains = append(domains, host)
	}
	return domains
}

// PageURL expands a page pattern for page n. {index} is the index URL with a trailing slash.
func (c *Config) PageURL(pattern string, n int) string {
	index := c.URL
	if !strings.HasSuffix(index, "/") {
		index += "/"
	}
	r := strings.NewReplacer("{index}", index, "{n}", strconv.Itoa(n))
	return r.Replace(pattern)
}

package model

import (
	"net/url"
	"strings"
)

// URLOnDomain reports whether rawURL points at the given retail domain,
// treating "www." prefixes and subdomains of the domain as equivalent.
func URLOnDomain(rawURL, domain string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return hostOnDomain(u.Host, domain)
}

func hostOnDomain(host, domain string) bool {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "www.")
	domain = strings.TrimPrefix(strings.ToLower(domain), "www.")
	return host == domain || strings.HasSuffix(host, "."+domain)
}

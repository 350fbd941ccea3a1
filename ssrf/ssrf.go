// Package ssrf validates that a client-supplied URL is safe to fetch from
// the server: absolute, http(s), and not resolving to a loopback, link-local,
// private, or otherwise internal address. It is deliberately pure/stdlib:
// no DNS cache, no allowlist config, just the checks every
// ScrapeRequest.URL must pass before it reaches the scrape engine.
package ssrf

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate parses rawURL and rejects it unless it is a safe, absolute
// http(s) URL. On success it returns the parsed, normalized URL.
func Validate(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("url is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("url must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q: only http/https allowed", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("url has no host")
	}
	if strings.EqualFold(host, "localhost") {
		return nil, fmt.Errorf("url resolves to a blocked host: %s", host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if err := checkIP(ip); err != nil {
			return nil, err
		}
		return u, nil
	}

	// Hostname: resolve and reject if any resolved address is internal.
	// This is a point-in-time check (DNS rebinding between validation and
	// fetch is not defended against here); fetch-time redirects must be
	// re-validated by the caller using the same function.
	addrs, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("could not resolve host %q: %w", host, err)
	}
	for _, ip := range addrs {
		if err := checkIP(ip); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func checkIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("url resolves to a loopback address: %s", ip)
	case ip.IsPrivate():
		return fmt.Errorf("url resolves to a private address: %s", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("url resolves to a link-local address: %s", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("url resolves to an unspecified address: %s", ip)
	case ip.IsMulticast():
		return fmt.Errorf("url resolves to a multicast address: %s", ip)
	}
	return nil
}

package registry

import (
	"errors"
	"strings"
)

// ErrInvalidURL is returned when a URL cannot be reduced to a host.
var ErrInvalidURL = errors.New("registry: invalid url")

// NormalizedURL is the canonical identity of a page map: lowercased host
// without protocol or www prefix, plus path and query.
type NormalizedURL struct {
	Domain string
	URL    string
}

// Normalize reduces a URL to its canonical form: protocol and "www."
// stripped, host lowercased, path and query retained, trailing path slash
// dropped. Normalize is idempotent:
// Normalize(Normalize(u).URL) equals Normalize(u).
func Normalize(raw string) (NormalizedURL, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	if s == "" {
		return NormalizedURL{}, ErrInvalidURL
	}

	host := s
	rest := ""
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		host, rest = s[:i], s[i:]
	}
	host = strings.ToLower(host)
	if host == "" {
		return NormalizedURL{}, ErrInvalidURL
	}

	// fragments never reach the server, drop them
	if i := strings.Index(rest, "#"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSuffix(rest, "/")

	return NormalizedURL{Domain: host, URL: host + rest}, nil
}

// NormalizeDomain reduces input to a bare lowercased domain, tolerating
// full URLs as input.
func NormalizeDomain(raw string) (string, error) {
	n, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	return n.Domain, nil
}

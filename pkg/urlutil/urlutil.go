package urlutil

import (
	"net/url"
	"strings"
)

// CanonicalBase normalizes a service base URL so endpoint paths can be
// appended to it deterministically.
//
//   - Scheme and host are lowercased
//   - Default ports are omitted (:80 for http, :443 for https)
//   - Trailing slashes are removed from the path
//   - Query and fragment are dropped
func CanonicalBase(base url.URL) url.URL {
	canonical := base

	canonical.Scheme = strings.ToLower(canonical.Scheme)
	canonical.Host = strings.ToLower(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	canonical.Path = strings.TrimRight(canonical.Path, "/")
	canonical.RawPath = ""
	canonical.Fragment = ""
	canonical.RawFragment = ""
	canonical.RawQuery = ""
	canonical.ForceQuery = false

	return canonical
}

// Resolve appends path to the canonical base and attaches the encoded query.
// Query values are encoded in key order so the same request always yields
// the same URI.
func Resolve(base url.URL, path string, query url.Values) url.URL {
	resolved := CanonicalBase(base)
	resolved.Path = resolved.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		resolved.RawQuery = query.Encode()
	}
	return resolved
}

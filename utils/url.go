// Package utils provides utility functions for the application.
package utils

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a reference URL so the same resource always
// maps to the same stored key: the scheme is forced to https, the host is
// lowercased, query string and fragment are dropped, a bare host gains the
// root slash, and a trailing slash is trimmed unless the path is the bare
// root. Path case is preserved. Unparseable input is returned unchanged so
// dedup degrades to exact match instead of rejecting the reference.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""

	if u.Path == "" {
		// A bare host parses with an empty path; pin it to "/" so root
		// URLs with and without the trailing slash share one key.
		u.Path = "/"
	} else if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}

	return u.String()
}

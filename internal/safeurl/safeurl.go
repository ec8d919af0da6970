// Package safeurl guards the playlist-source registration boundary against
// non-web URL schemes.
package safeurl

import "net/url"

// IsHTTPOrHTTPS returns true if u is an absolute URL with scheme http or https
// and a non-empty host. Rejects file://, ftp:// and other schemes that could
// lead to SSRF or local file access when a playlist source URL is registered.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

package parser

import (
	"net/url"

	"github.com/snapetech/m3ucat/internal/domain"
)

// Validate checks a candidate entry for structural validity. Rules, in order:
// the URL must parse as an absolute URL, and the display name must be
// non-empty. No other field is mandatory.
func Validate(e domain.PlaylistEntry) (bool, string) {
	u, err := url.Parse(e.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false, "Invalid URL"
	}
	if e.DisplayName == "" {
		return false, "Missing display name"
	}
	return true, ""
}

// Package parser converts raw M3U playlist text into structured entries plus
// line-level parse errors. Parsing is a single forward pass with a one-slot
// buffer for the most recent #EXTINF metadata line; malformed lines are
// recorded and skipped, never fatal.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snapetech/m3ucat/internal/domain"
)

const (
	extinfPrefix = "#EXTINF:"

	// fallbackName is used when a metadata line carries no comma-separated
	// display name at all.
	fallbackName = "Unknown"
)

// Attribute patterns: case-insensitive key, double-quoted value.
var (
	tvgIDRe      = regexp.MustCompile(`(?i)tvg-id="([^"]*)"`)
	tvgNameRe    = regexp.MustCompile(`(?i)tvg-name="([^"]*)"`)
	tvgLogoRe    = regexp.MustCompile(`(?i)tvg-logo="([^"]*)"`)
	groupTitleRe = regexp.MustCompile(`(?i)group-title="([^"]*)"`)
)

// Parse parses playlist text into a ParsedPlaylist. CRLF and LF line endings
// are both accepted. sourceURL is recorded verbatim on the result.
func Parse(sourceURL, text string) *domain.ParsedPlaylist {
	out := &domain.ParsedPlaylist{
		SourceURL: sourceURL,
		ParsedAt:  time.Now().UTC(),
	}

	var pendingMeta string // one-slot buffer: most recent #EXTINF line

	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		lineNo := i + 1
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, extinfPrefix) {
			pendingMeta = line
			continue
		}
		if strings.HasPrefix(line, "#") {
			// #EXTM3U header, #EXTGRP and friends: ignored.
			continue
		}

		// Non-comment, non-blank: the URL terminating the current entry.
		if pendingMeta == "" {
			out.Errors = append(out.Errors, domain.ParseError{
				LineNumber: lineNo,
				RawLine:    line,
				Reason:     "URL without metadata",
			})
			continue
		}

		entry := buildEntry(pendingMeta, line)
		pendingMeta = "" // cleared whether or not validation succeeds

		if ok, reason := Validate(entry); !ok {
			out.Errors = append(out.Errors, domain.ParseError{
				LineNumber: lineNo,
				RawLine:    line,
				Reason:     reason,
			})
			continue
		}
		out.Entries = append(out.Entries, entry)
	}

	out.TotalEntries = len(out.Entries)
	return out
}

func buildEntry(meta, streamURL string) domain.PlaylistEntry {
	return domain.PlaylistEntry{
		ID:              uuid.NewString(),
		TVGID:           extractAttr(tvgIDRe, meta),
		TVGName:         extractAttr(tvgNameRe, meta),
		TVGLogo:         extractAttr(tvgLogoRe, meta),
		GroupTitle:      extractAttr(groupTitleRe, meta),
		DisplayName:     displayName(meta),
		URL:             streamURL,
		RawMetadataLine: meta,
	}
}

func extractAttr(re *regexp.Regexp, line string) string {
	m := re.FindStringSubmatch(line)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// displayName is everything after the last comma on the metadata line,
// trimmed. A line without a comma yields the literal fallback.
func displayName(meta string) string {
	idx := strings.LastIndex(meta, ",")
	if idx < 0 {
		return fallbackName
	}
	return strings.TrimSpace(meta[idx+1:])
}

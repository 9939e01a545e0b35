// Package content normalizes and sanitizes record text before indexing.
// Records arrive from remote repositories and are untrusted; everything
// written to the AppView passes through here.
package content

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	// titlePolicy strips all markup: titles are plain text.
	titlePolicy = bluemonday.StrictPolicy()

	// bodyPolicy allows a small formatting subset for topic/reply bodies.
	bodyPolicy = func() *bluemonday.Policy {
		p := bluemonday.NewPolicy()
		p.AllowElements("p", "br", "b", "strong", "i", "em", "s", "code", "pre", "blockquote", "ul", "ol", "li")
		p.AllowAttrs("href").OnElements("a")
		p.AllowStandardURLs()
		p.RequireNoFollowOnLinks(true)
		return p
	}()
)

// Bidirectional override and isolate code points. Left in place these let
// content visually reorder surrounding text (e.g. spoofed URLs).
var bidiOverrides = map[rune]bool{
	'\u202a': true, // LRE
	'\u202b': true, // RLE
	'\u202c': true, // PDF
	'\u202d': true, // LRO
	'\u202e': true, // RLO
	'\u2066': true, // LRI
	'\u2067': true, // RLI
	'\u2068': true, // FSI
	'\u2069': true, // PDI
}

// Title sanitizes a title field to plain text: markup stripped, NFC
// normalized, bidi overrides removed, whitespace trimmed.
func Title(s string) string {
	return strings.TrimSpace(stripBidi(norm.NFC.String(titlePolicy.Sanitize(s))))
}

// Body sanitizes a content field through the tag/attribute allow-list,
// with NFC normalization and bidi override stripping.
func Body(s string) string {
	return strings.TrimSpace(stripBidi(norm.NFC.String(bodyPolicy.Sanitize(s))))
}

// Plain normalizes a short free-text field (category, tag, reaction type)
// without any markup interpretation.
func Plain(s string) string {
	return strings.TrimSpace(stripBidi(norm.NFC.String(s)))
}

func stripBidi(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { return bidiOverrides[r] }) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if bidiOverrides[r] {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

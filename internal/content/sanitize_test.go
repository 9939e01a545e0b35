package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleStripsAllMarkup(t *testing.T) {
	assert.Equal(t, "Hello world", Title("<b>Hello</b> <script>alert(1)</script>world"))
	assert.Equal(t, "Plain title", Title("  Plain title  "))
}

func TestBodyKeepsFormattingSubset(t *testing.T) {
	out := Body("<p>Hello <strong>world</strong></p><script>alert(1)</script>")

	assert.Contains(t, out, "<strong>world</strong>")
	assert.NotContains(t, out, "script")
	assert.NotContains(t, out, "alert")
}

func TestBodyForcesNoFollowLinks(t *testing.T) {
	out := Body(`<a href="https://example.com">link</a>`)

	assert.Contains(t, out, `href="https://example.com"`)
	assert.Contains(t, out, "nofollow")
}

func TestBodyDropsEventHandlers(t *testing.T) {
	out := Body(`<p onclick="steal()">text</p>`)

	assert.Contains(t, out, "text")
	assert.NotContains(t, out, "onclick")
}

func TestNFCNormalization(t *testing.T) {
	// e + combining acute accent must collapse to the precomposed form.
	decomposed := "Cafe\u0301"
	assert.Equal(t, "Caf\u00E9", Plain(decomposed))
}

func TestBidiOverridesStripped(t *testing.T) {
	// RLO reverses rendering of what follows; classic URL-spoofing vector.
	spoofed := "see \u202Ehttps://evil.example\u202C now"

	out := Plain(spoofed)

	assert.Equal(t, "see https://evil.example now", out)
	assert.NotContains(t, out, "\u202E")
}

func TestBidiIsolatesStripped(t *testing.T) {
	for _, r := range []rune{'\u2066', '\u2067', '\u2068', '\u2069'} {
		out := Plain("a" + string(r) + "b")
		assert.Equal(t, "ab", out)
	}
}

func TestPlainLeavesOrdinaryUnicodeAlone(t *testing.T) {
	// Genuine RTL text is untouched; only the override controls go.
	hebrew := "שלום עולם"
	assert.Equal(t, hebrew, Plain(hebrew))
	assert.Equal(t, "👍", Plain("👍"))
}

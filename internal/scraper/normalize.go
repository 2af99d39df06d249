package scraper

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ibeckermayer/xblueprint/internal/types"
)

// RepostMarker prefixes reposted content, which is never analyzed
const RepostMarker = "RT @"

const maxBioRunes = 160

// rawItem is a post as it comes out of a document, before cleanup
type rawItem struct {
	Markup    string
	Timestamp string
	Repost    bool
}

// Normalizer turns markup fragments into plain post text
type Normalizer struct {
	policy   *bluemonday.Policy
	minChars int
}

// NewNormalizer creates a normalizer that keeps items longer than minChars runes.
func NewNormalizer(minChars int) *Normalizer {
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &Normalizer{
		policy:   policy,
		minChars: minChars,
	}
}

// Clean strips tags, decodes entities and collapses whitespace.
func (n *Normalizer) Clean(markup string) string {
	text := n.policy.Sanitize(markup)
	// The policy re-escapes text, so decode after stripping.
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

// Keep reports whether cleaned text is usable as a content item.
func (n *Normalizer) Keep(text string) bool {
	if utf8.RuneCountInString(text) <= n.minChars {
		return false
	}
	return !strings.HasPrefix(text, RepostMarker)
}

// Items cleans and filters raw items, preserving order.
func (n *Normalizer) Items(raw []rawItem) []types.ContentItem {
	items := make([]types.ContentItem, 0, len(raw))
	for _, r := range raw {
		if r.Repost {
			continue
		}
		text := n.Clean(r.Markup)
		if !n.Keep(text) {
			continue
		}
		items = append(items, types.ContentItem{
			Text:      text,
			Timestamp: strings.TrimSpace(r.Timestamp),
		})
	}
	return items
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

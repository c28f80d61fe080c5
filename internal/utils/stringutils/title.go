package stringutils

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Ellipsis is appended to derived titles whose source text was cut.
const Ellipsis = "..."

// DeriveTitle returns the first limit characters of content, followed by Ellipsis when content is
// longer than limit. Characters are counted as runes.
func DeriveTitle(content string, limit int) string {
	if utf8.RuneCountInString(content) <= limit {
		return content
	}
	runes := []rune(content)
	return string(runes[:limit]) + Ellipsis
}

// NormalizeTags trims, lowercases, drops empties and duplicates, and sorts the result.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

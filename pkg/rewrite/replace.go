package rewrite

import (
	"slices"
	"strings"
)

// Replacement swaps content[Start:End] for Text
type Replacement struct {
	Start int
	End   int
	Text  string
}

// ApplyReplacements substitutes every span in one left-to-right pass over the
// original content. Spans must not overlap; untouched text is copied verbatim.
func ApplyReplacements(content string, replacements []Replacement) string {
	if len(replacements) == 0 {
		return content
	}

	sorted := slices.Clone(replacements)
	slices.SortFunc(sorted, func(a, b Replacement) int { return a.Start - b.Start })

	var b strings.Builder
	b.Grow(len(content))
	prev := 0
	for _, r := range sorted {
		b.WriteString(content[prev:r.Start])
		b.WriteString(r.Text)
		prev = r.End
	}
	b.WriteString(content[prev:])
	return b.String()
}

// ImageTag renders a Markdown image embed
func ImageTag(alt, link string) string {
	return "![" + alt + "](" + link + ")"
}

package extract

import (
	"iter"
	"regexp"
	"strings"

	"github.com/Sriram-PR/mdimg/pkg/models"
)

// imageEmbedRe matches ![alt](url); alt excludes ']' and url excludes ')'
var imageEmbedRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

// All yields image references in order of appearance.
// The sequence is lazy and can be ranged over any number of times.
func All(content string) iter.Seq[models.ImageReference] {
	return func(yield func(models.ImageReference) bool) {
		offset := 0
		for offset <= len(content) {
			loc := imageEmbedRe.FindStringSubmatchIndex(content[offset:])
			if loc == nil {
				return
			}
			ref := models.ImageReference{
				AltText:     content[offset+loc[2] : offset+loc[3]],
				SourceURL:   content[offset+loc[4] : offset+loc[5]],
				MatchedSpan: content[offset+loc[0] : offset+loc[1]],
				Start:       offset + loc[0],
				End:         offset + loc[1],
			}
			if !yield(ref) {
				return
			}
			offset += loc[1] // Matches are never empty, so this always advances
		}
	}
}

// Extract collects every image reference in the document
func Extract(content string) []models.ImageReference {
	var refs []models.ImageReference
	for ref := range All(content) {
		refs = append(refs, ref)
	}
	return refs
}

// IsNetworkURL reports whether a reference should be downloaded.
// Matches the literal, case-sensitive "http" prefix (covers http:// and https://).
func IsNetworkURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http")
}

// NetworkReferences filters refs down to network URLs and assigns the naming index.
// Indices depend only on textual order, never on fetch outcome or completion order.
func NetworkReferences(refs []models.ImageReference) []models.IndexedReference {
	indexed := make([]models.IndexedReference, 0, len(refs))
	for _, ref := range refs {
		if !IsNetworkURL(ref.SourceURL) {
			continue
		}
		indexed = append(indexed, models.IndexedReference{Index: len(indexed), Ref: ref})
	}
	return indexed
}

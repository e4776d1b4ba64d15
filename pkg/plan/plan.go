package plan

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Sriram-PR/mdimg/pkg/convert"
	"github.com/Sriram-PR/mdimg/pkg/models"
	"github.com/Sriram-PR/mdimg/pkg/utils"
)

const (
	defaultExtension = ".jpg"
	animatedWebPExt  = ".awebp"
)

// Decision says whether a downloaded image must be re-encoded, and into what
type Decision struct {
	Target convert.Format
	Reason string // Human-readable, for logs
}

// Convert reports whether a conversion applies
func (d Decision) Convert() bool { return d.Target != convert.FormatNone }

// NewDocumentContext derives where a document's images are stored.
// filePath should be absolute; the images directory sits next to the document.
func NewDocumentContext(filePath string) models.DocumentContext {
	dir := filepath.Dir(filePath)
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	return models.DocumentContext{
		FilePath:            filePath,
		ContainingDirectory: dir,
		BaseName:            base,
		ImagesDirectory:     filepath.Join(dir, base),
	}
}

// Plan computes the pre-conversion destination of a network reference
func Plan(docCtx models.DocumentContext, index int, sourceURL string) (models.LocalImagePlan, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return models.LocalImagePlan{}, fmt.Errorf("%w: invalid image URL '%s': %w", utils.ErrParsing, sourceURL, err)
	}

	ext := urlPathExt(u)
	if ext == "" {
		ext = defaultExtension
	}

	fileName := strconv.Itoa(index) + ext
	return models.LocalImagePlan{
		LocalAbsolutePath:    filepath.Join(docCtx.ImagesDirectory, fileName),
		LocalFileName:        fileName,
		DocumentRelativeLink: filepath.ToSlash(filepath.Join(docCtx.BaseName, fileName)),
		Extension:            ext,
	}, nil
}

// Decide evaluates the normalization rules in order; the first match wins.
func Decide(p models.LocalImagePlan, sourceURL string, opts models.ProcessingOptions) Decision {
	ext := strings.ToLower(p.Extension)

	if ext == animatedWebPExt || (ext == ".webp" && isMislabeledAnimatedWebP(sourceURL)) {
		if opts.ConvertAllToJPG {
			return Decision{Target: convert.FormatJPEG, Reason: "animated webp to jpg"}
		}
		return Decision{Target: convert.FormatPNG, Reason: "animated webp to png"}
	}

	if opts.ConvertAllToJPG {
		switch ext {
		case ".png", ".jpg", ".jpeg":
		default:
			return Decision{Target: convert.FormatJPEG, Reason: p.Extension + " to jpg"}
		}
	}
	return Decision{}
}

// isMislabeledAnimatedWebP checks the URL path's final segment for a .awebp suffix
func isMislabeledAnimatedWebP(sourceURL string) bool {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(path.Base(u.EscapedPath())), animatedWebPExt)
}

// urlPathExt returns the extension of the URL's last path segment as it
// appears in the link, percent-encoding intact. A segment whose only dot
// is its first character (".png") is a dotfile and has no extension.
func urlPathExt(u *url.URL) string {
	base := path.Base(u.EscapedPath())
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || strings.Trim(base, ".") == "" {
		return ""
	}
	return base[i:]
}

// ApplyConversion rewrites the plan for the target format and returns the
// pre-conversion path, which the normalizer reads from.
func ApplyConversion(p *models.LocalImagePlan, target convert.Format) (sourcePath string) {
	sourcePath = p.LocalAbsolutePath
	newExt := target.Extension()
	if newExt == "" {
		return sourcePath
	}

	p.LocalAbsolutePath = replaceExtension(p.LocalAbsolutePath, p.Extension, newExt)
	p.DocumentRelativeLink = replaceExtension(p.DocumentRelativeLink, p.Extension, newExt)
	p.LocalFileName = replaceExtension(p.LocalFileName, p.Extension, newExt)
	p.Extension = newExt
	return sourcePath
}

// replaceExtension swaps a trailing extension, matched case-insensitively
func replaceExtension(s, oldExt, newExt string) string {
	if len(s) >= len(oldExt) && strings.EqualFold(s[len(s)-len(oldExt):], oldExt) {
		return s[:len(s)-len(oldExt)] + newExt
	}
	return s + newExt
}

package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for target resolution.
var (
	ErrTargetNotFound    = errors.New("path does not exist")
	ErrUnsupportedTarget = errors.New("target must be a directory or a markdown file")
)

// Kind tells a directory target from a single document
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Target is a resolved command-line path
type Target struct {
	Path string // Absolute
	Kind Kind
}

// ResolveTarget makes path absolute and classifies it
func ResolveTarget(path string) (Target, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Target{}, fmt.Errorf("resolve '%s': %w", path, err)
	}

	info, err := os.Stat(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Target{}, fmt.Errorf("%w: %s", ErrTargetNotFound, absPath)
	}
	if err != nil {
		return Target{}, fmt.Errorf("stat '%s': %w", absPath, err)
	}

	switch {
	case info.IsDir():
		return Target{Path: absPath, Kind: KindDirectory}, nil
	case IsMarkdown(absPath):
		return Target{Path: absPath, Kind: KindFile}, nil
	}
	return Target{}, fmt.Errorf("%w: %s", ErrUnsupportedTarget, absPath)
}

// IsMarkdown reports whether name ends in ".md", ignoring case
func IsMarkdown(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".md")
}

// MarkdownFiles walks root depth-first and yields every regular Markdown file.
// A directory that cannot be read is yielded as an error and skipped; the walk goes on.
// Symlinked files are followed, symlinked directories are not.
func MarkdownFiles(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		walk(root, yield)
	}
}

// walk returns false once the consumer stops the iteration
func walk(dir string, yield func(string, error) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield("", fmt.Errorf("read directory '%s': %w", dir, err))
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		switch mode := entry.Type(); {
		case mode.IsDir():
			if !walk(path, yield) {
				return false
			}
		case mode.IsRegular():
			if IsMarkdown(path) && !yield(path, nil) {
				return false
			}
		case mode&fs.ModeSymlink != 0:
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() || !IsMarkdown(path) {
				continue
			}
			if !yield(path, nil) {
				return false
			}
		}
	}
	return true
}

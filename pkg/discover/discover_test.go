package discover

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("# doc\n"), 0644))
}

func collect(t *testing.T, root string) ([]string, []error) {
	t.Helper()
	var files []string
	var errs []error
	for path, err := range MarkdownFiles(root) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rel, relErr := filepath.Rel(root, path)
		require.NoError(t, relErr)
		files = append(files, filepath.ToSlash(rel))
	}
	return files, errs
}

func TestIsMarkdown(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.md", true},
		{"A.MD", true},
		{"notes.Md", true},
		{"a.markdown", false},
		{"a.md.bak", false},
		{"md", false},
		{"a.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMarkdown(tt.name))
		})
	}
}

func TestResolveTarget(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "README.MD")
	txt := filepath.Join(dir, "notes.txt")
	touch(t, md)
	touch(t, txt)

	t.Run("directory", func(t *testing.T) {
		target, err := ResolveTarget(dir)
		require.NoError(t, err)
		assert.Equal(t, KindDirectory, target.Kind)
		assert.Equal(t, dir, target.Path)
	})

	t.Run("markdown file", func(t *testing.T) {
		target, err := ResolveTarget(md)
		require.NoError(t, err)
		assert.Equal(t, KindFile, target.Kind)
	})

	t.Run("other file", func(t *testing.T) {
		_, err := ResolveTarget(txt)
		assert.True(t, errors.Is(err, ErrUnsupportedTarget))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ResolveTarget(filepath.Join(dir, "missing"))
		assert.True(t, errors.Is(err, ErrTargetNotFound))
	})

	t.Run("relative path becomes absolute", func(t *testing.T) {
		t.Chdir(dir)
		target, err := ResolveTarget(".")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(target.Path))
		assert.Equal(t, KindDirectory, target.Kind)
	})
}

func TestMarkdownFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.md"))
	touch(t, filepath.Join(root, "b.txt"))
	touch(t, filepath.Join(root, "docs", "guide.MD"))
	touch(t, filepath.Join(root, "docs", "deep", "x.md"))
	touch(t, filepath.Join(root, "docs", "deep", "image.png"))
	touch(t, filepath.Join(root, "z.md"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	files, errs := collect(t, root)
	assert.Empty(t, errs)
	// os.ReadDir sorts by name, so the depth-first order is deterministic
	assert.Equal(t, []string{"a.md", "docs/deep/x.md", "docs/guide.MD", "z.md"}, files)
}

func TestMarkdownFiles_Restartable(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.md"))
	touch(t, filepath.Join(root, "sub", "b.md"))

	first, _ := collect(t, root)
	second, _ := collect(t, root)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
}

func TestMarkdownFiles_EarlyBreak(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.md", "b.md", "c.md"} {
		touch(t, filepath.Join(root, "sub", name))
	}

	count := 0
	for range MarkdownFiles(root) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestMarkdownFiles_UnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.md"))
	locked := filepath.Join(root, "locked")
	touch(t, filepath.Join(locked, "hidden.md"))
	touch(t, filepath.Join(root, "z.md"))
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	files, errs := collect(t, root)
	assert.Equal(t, []string{"a.md", "z.md"}, files)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "locked")
}

func TestMarkdownFiles_MissingRoot(t *testing.T) {
	_, errs := collect(t, filepath.Join(t.TempDir(), "gone"))
	assert.Len(t, errs, 1)
}

func TestMarkdownFiles_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	touch(t, filepath.Join(outside, "real.md"))
	touch(t, filepath.Join(outside, "dir", "inner.md"))

	require.NoError(t, os.Symlink(filepath.Join(outside, "real.md"), filepath.Join(root, "link.md")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "dir"), filepath.Join(root, "linkdir")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "missing.md"), filepath.Join(root, "dangling.md")))

	files, errs := collect(t, root)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"link.md"}, files)
}

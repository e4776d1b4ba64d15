package convert

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/mdimg/pkg/utils"
)

func writeImage(t *testing.T, path string, encode func(*os.File, image.Image) error, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, encode(f, img))
	require.NoError(t, f.Close())
}

func transparentSquare() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				img.Set(x, y, color.NRGBA{R: 255, A: 255})
			} // right half fully transparent
		}
	}
	return img
}

func TestFormatForExtension(t *testing.T) {
	assert.Equal(t, FormatPNG, FormatForExtension(".PNG"))
	assert.Equal(t, FormatJPEG, FormatForExtension(".jpg"))
	assert.Equal(t, FormatJPEG, FormatForExtension(".JPEG"))
	assert.Equal(t, FormatNone, FormatForExtension(".gif"))
	assert.Equal(t, ".png", FormatPNG.Extension())
	assert.Equal(t, ".jpg", FormatJPEG.Extension())
	assert.Equal(t, "", FormatNone.Extension())
}

func TestNormalize_PNGToJPEGFlattensAlpha(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "0.png")
	out := filepath.Join(dir, "0.jpg")
	writeImage(t, in, func(f *os.File, img image.Image) error { return png.Encode(f, img) }, transparentSquare())

	got, err := Normalize(in, out, FormatJPEG)
	require.NoError(t, err)
	assert.Equal(t, out, got)

	_, err = os.Stat(in)
	assert.True(t, os.IsNotExist(err), "input should be removed after conversion")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)

	r, g, b, _ := img.At(6, 4).RGBA()
	assert.Greater(t, r>>8, uint32(200), "transparent area should be white")
	assert.Greater(t, g>>8, uint32(200))
	assert.Greater(t, b>>8, uint32(200))

	r, g, _, _ = img.At(1, 4).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(60))
}

func TestNormalize_GIFToPNG(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "1.awebp") // extension is irrelevant, content is sniffed
	out := filepath.Join(dir, "1.png")

	pal := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black, color.White})
	pal.SetColorIndex(1, 1, 1)
	writeImage(t, in, func(f *os.File, img image.Image) error { return gif.Encode(f, img, nil) }, pal)

	_, err := Normalize(in, out, FormatPNG)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	r, _, _, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestNormalize_UndecodableKeepsInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "2.awebp")
	out := filepath.Join(dir, "2.png")
	require.NoError(t, os.WriteFile(in, []byte("definitely not an image"), 0o644))

	_, err := Normalize(in, out, FormatPNG)
	require.Error(t, err)

	var convErr *utils.ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, in, convErr.Path)
	assert.True(t, errors.Is(err, utils.ErrConversion))

	_, statErr := os.Stat(in)
	assert.NoError(t, statErr, "input must be kept on failure")
	_, statErr = os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "output must not exist on failure")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files should be left behind")
}

func TestNormalize_MissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := Normalize(filepath.Join(dir, "missing.gif"), filepath.Join(dir, "missing.jpg"), FormatJPEG)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConversion))
}

func TestNormalize_NoFormat(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "0.png")
	writeImage(t, in, func(f *os.File, img image.Image) error { return png.Encode(f, img) }, transparentSquare())

	_, err := Normalize(in, filepath.Join(dir, "0.out"), FormatNone)
	require.Error(t, err)
	_, statErr := os.Stat(in)
	assert.NoError(t, statErr)
}

func copyFixture(t *testing.T, name, dest string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dest, data, 0o644))
}

func decodeFixture(t *testing.T, name string) image.Image {
	t.Helper()
	img, err := decodeFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return img
}

func assertSamePixels(t *testing.T, want, got image.Image, offset image.Point) {
	t.Helper()
	b := want.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			w := color.NRGBAModel.Convert(want.At(x, y))
			g := color.NRGBAModel.Convert(got.At(x+offset.X, y+offset.Y))
			if w != g {
				t.Fatalf("pixel (%d,%d): want %v, got %v", x, y, w, g)
			}
		}
	}
}

func TestNormalize_WebP(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
		target  Format
		width   int
		height  int
	}{
		{"still lossless to jpg", "static.lossless.webp", FormatJPEG, 75, 100},
		{"still with alpha to jpg", "static.alpha.webp", FormatJPEG, 400, 301},
		{"animated lossless to png", "animated.lossless.webp", FormatPNG, 75, 100},
		{"animated lossless to jpg", "animated.lossless.webp", FormatJPEG, 75, 100},
		{"animated with alpha to png", "animated.alpha.webp", FormatPNG, 400, 301},
		{"animated frame offset to png", "animated.offset.webp", FormatPNG, 80, 104},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := filepath.Join(dir, "0.awebp")
			out := filepath.Join(dir, "0"+tt.target.Extension())
			copyFixture(t, tt.fixture, in)

			got, err := Normalize(in, out, tt.target)
			require.NoError(t, err)
			assert.Equal(t, out, got)
			assert.NoFileExists(t, in)

			f, err := os.Open(out)
			require.NoError(t, err)
			defer f.Close()
			img, format, err := image.Decode(f)
			require.NoError(t, err)
			assert.Equal(t, string(tt.target), format)
			assert.Equal(t, tt.width, img.Bounds().Dx())
			assert.Equal(t, tt.height, img.Bounds().Dy())
		})
	}
}

func TestDecodeAnimatedWebP_FirstFrame(t *testing.T) {
	t.Run("lossless", func(t *testing.T) {
		assertSamePixels(t, decodeFixture(t, "static.lossless.webp"), decodeFixture(t, "animated.lossless.webp"), image.Point{})
	})

	t.Run("lossy with alpha", func(t *testing.T) {
		// The second frame is a different picture; only the first may show up
		assertSamePixels(t, decodeFixture(t, "static.alpha.webp"), decodeFixture(t, "animated.alpha.webp"), image.Point{})
	})

	t.Run("frame placed at its offset", func(t *testing.T) {
		img := decodeFixture(t, "animated.offset.webp")
		assert.Equal(t, image.Rect(0, 0, 80, 104), img.Bounds())
		_, _, _, a := img.At(0, 0).RGBA()
		assert.Zero(t, a, "canvas outside the frame is transparent")
		assertSamePixels(t, decodeFixture(t, "static.lossless.webp"), img, image.Pt(4, 2))
	})
}

func TestIsAnimatedWebP(t *testing.T) {
	read := func(name string) []byte {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		return data
	}
	assert.True(t, isAnimatedWebP(read("animated.lossless.webp")))
	assert.True(t, isAnimatedWebP(read("animated.alpha.webp")))
	assert.False(t, isAnimatedWebP(read("static.lossless.webp")))
	assert.False(t, isAnimatedWebP(read("static.alpha.webp"))) // VP8X without the animation flag
	assert.False(t, isAnimatedWebP([]byte("RIFF")))
}

func TestNormalize_TruncatedAnimatedWebP(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "animated.lossless.webp"))
	require.NoError(t, err)

	dir := t.TempDir()
	in := filepath.Join(dir, "0.awebp")
	out := filepath.Join(dir, "0.png")
	require.NoError(t, os.WriteFile(in, data[:64], 0o644))

	_, err = Normalize(in, out, FormatPNG)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConversion))
	assert.FileExists(t, in)
	assert.NoFileExists(t, out)
}

func TestFlattenAlpha(t *testing.T) {
	out := flattenAlpha(transparentSquare())
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(7, 7))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, out.NRGBAAt(0, 0))
}

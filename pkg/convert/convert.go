package convert

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/Sriram-PR/mdimg/pkg/utils"
)

// JPEGQuality is the encoder quality used for every JPEG written
const JPEGQuality = 90

// Format is a normalization target
type Format string

const (
	FormatNone Format = ""
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Extension returns the file extension written for the format
func (f Format) Extension() string {
	switch f {
	case FormatPNG:
		return ".png"
	case FormatJPEG:
		return ".jpg"
	}
	return ""
}

// FormatForExtension maps a target extension (".png", ".jpg", ".jpeg") to its format
func FormatForExtension(ext string) Format {
	switch strings.ToLower(ext) {
	case ".png":
		return FormatPNG
	case ".jpg", ".jpeg":
		return FormatJPEG
	}
	return FormatNone
}

// Normalize decodes the raster image at inputPath and re-encodes it to
// outputPath in the given format. The input file is removed only after the
// output is fully written; on failure the input stays and no output exists.
func Normalize(inputPath, outputPath string, format Format) (string, error) {
	if format == FormatNone {
		return "", &utils.ConversionError{Path: inputPath, Cause: fmt.Errorf("no target format")}
	}

	img, err := decodeFile(inputPath)
	if err != nil {
		return "", &utils.ConversionError{Path: inputPath, Cause: err}
	}

	if err := writeEncoded(outputPath, img, format); err != nil {
		return "", &utils.ConversionError{Path: inputPath, Cause: err}
	}

	if filepath.Clean(inputPath) != filepath.Clean(outputPath) {
		// Output is complete; a leftover original does not fail the conversion
		_ = os.Remove(inputPath)
	}
	return outputPath, nil
}

// decodeFile reads the first frame of any registered raster format,
// animated WebP included
func decodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if isAnimatedWebP(data) {
		img, err := decodeAnimatedWebP(data)
		if err != nil {
			return nil, fmt.Errorf("decode animated webp: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// writeEncoded encodes into a temp file next to outputPath, then renames it into place
func writeEncoded(outputPath string, img image.Image, format Format) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, flattenAlpha(img), &jpeg.Options{Quality: JPEGQuality})
	default:
		err = fmt.Errorf("unsupported target format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, outputPath)
}

// flattenAlpha composites src onto a white background, JPEG has no alpha channel.
func flattenAlpha(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}

// Package imageio loads photos with their EXIF orientation applied and saves results.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/smegmarip/stash-emojify-plugin/internal/log"
)

// ErrUnsupportedFormat is returned for output formats other than JPEG and PNG
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Load reads and decodes an image file
func Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes image bytes and rotates the result upright according to EXIF
func DecodeBytes(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	orientation := Orientation(data)
	log.Tracef("Decoded %s image %dx%d (orientation %d)", format, img.Bounds().Dx(), img.Bounds().Dy(), orientation)

	return Orient(img, orientation), nil
}

// Orientation returns the EXIF orientation tag (1-8), or 1 when absent
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	value, err := tag.Int(0)
	if err != nil || value < 1 || value > 8 {
		return 1
	}
	return value
}

// Orient applies an EXIF orientation transform so the image displays upright
func Orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// FormatFromExt maps a file extension to an imaging output format
func FormatFromExt(ext string) (imaging.Format, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return imaging.JPEG, nil
	case "png":
		return imaging.PNG, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Save encodes img to path; the format follows the file extension
func Save(img image.Image, path string) error {
	format, err := FormatFromExt(filepath.Ext(path))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := Encode(f, img, format); err != nil {
		return err
	}
	return f.Close()
}

// Encode writes img in the given format
func Encode(w io.Writer, img image.Image, format imaging.Format) error {
	if err := imaging.Encode(w, img, format, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// OutputPath builds the result path for a source photo: <dir>/<name>.emoji.<format>.
// An empty dir writes next to the source; an empty format keeps the source extension,
// or uses png when that extension cannot be saved (gif).
func OutputPath(src, dir, format string) string {
	ext := filepath.Ext(src)
	name := strings.TrimSuffix(filepath.Base(src), ext)

	if format == "" {
		format = strings.TrimPrefix(ext, ".")
		if _, err := FormatFromExt(ext); err != nil {
			format = "png"
		}
	}
	if dir == "" {
		dir = filepath.Dir(src)
	}

	return filepath.Join(dir, fmt.Sprintf("%s.emoji.%s", name, strings.ToLower(format)))
}

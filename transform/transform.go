// Package transform is the codec boundary: raw image bytes in, re-encoded
// bytes out. Failures are returned as errors; the caller decides how they
// degrade.
package transform

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/tiff"

	// Register additional decoders into the image.Decode registry. The
	// tiff import above registers its own decoder.
	_ "golang.org/x/image/bmp"
)

func init() {
	// Register the WebP decoder so image.Decode handles WebP input.
	image.RegisterFormat("webp", "RIFF????WEBP", webp.Decode, webp.DecodeConfig)
}

// maxImageDimension bounds decoded width/height. Larger images are rejected
// before the full decode to prevent decompression bombs.
const maxImageDimension = 16384

// ErrUnsupportedFormat marks output formats the codec cannot produce.
var ErrUnsupportedFormat = errors.New("transform: unsupported output format")

// Options describes one transformation. Width/Height of zero mean "not
// requested"; when both are set the image is cover-cropped to exactly that
// box. Upscaling past the source dimensions is never performed.
type Options struct {
	Width   int
	Height  int
	Format  string
	Quality int
}

// Apply decodes data, resizes per opts, and re-encodes in the requested
// format.
func Apply(data []byte, opts Options) ([]byte, error) {
	format := strings.ToLower(opts.Format)
	if format == "svg" {
		// Vector output cannot be produced from raster data.
		return nil, ErrUnsupportedFormat
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if cfg.Width > maxImageDimension || cfg.Height > maxImageDimension {
			return nil, fmt.Errorf("transform: image dimensions %dx%d exceed maximum %d",
				cfg.Width, cfg.Height, maxImageDimension)
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("transform: decode: %w", err)
	}

	if opts.Width > 0 || opts.Height > 0 {
		img = resizeImage(img, opts.Width, opts.Height)
	}

	return encode(img, format, opts.Quality)
}

// resizeImage applies cover-fit cropping when both dimensions are given and
// aspect-preserving scaling when only one is. Targets larger than the source
// are scaled down proportionally instead of upscaling.
func resizeImage(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return img
	}

	switch {
	case w > 0 && h > 0:
		scale := maxf(float64(w)/float64(srcW), float64(h)/float64(srcH))
		if scale > 1 {
			w = int(float64(w) / scale)
			h = int(float64(h) / scale)
			if w < 1 {
				w = 1
			}
			if h < 1 {
				h = 1
			}
		}
		return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
	case w > 0:
		if w > srcW {
			w = srcW
		}
		return resize.Resize(uint(w), 0, img, resize.Lanczos3)
	default:
		if h > srcH {
			h = srcH
		}
		return resize.Resize(0, uint(h), img, resize.Lanczos3)
	}
}

func encode(img image.Image, format string, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = 80
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "jpg", "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, &gif.Options{NumColors: 256})
	case "webp":
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	case "tiff":
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	case "avif":
		return encodeAVIF(img, quality)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, fmt.Errorf("transform: encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

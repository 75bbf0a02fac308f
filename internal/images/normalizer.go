// Package images validates, downsizes and re-encodes uploaded product photos
// and ships the result to a remote image host.
package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"mime"
	"strings"

	"minimarket/internal/apperrors"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	// MaxUploadBytes is the largest accepted raw upload.
	MaxUploadBytes = 5 << 20
	// MaxPixels bounds the decoded bitmap. A few kilobytes of PNG can declare
	// a canvas far larger than any product photo.
	MaxPixels = 40_000_000

	MaxWidth    = 600
	MaxHeight   = 400
	JPEGQuality = 65

	// OutputType is the content type of every normalized image.
	OutputType = "image/jpeg"
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

var typeAliases = map[string]string{
	"image/jpg":      "image/jpeg",
	"image/pjpeg":    "image/jpeg",
	"image/x-png":    "image/png",
	"image/x-ms-bmp": "image/bmp",
	"image/x-bmp":    "image/bmp",
}

// Allowed reports whether contentType names an accepted raster format.
// Parameters and case are ignored.
func Allowed(contentType string) bool {
	return allowedTypes[canonicalType(contentType)]
}

func canonicalType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(contentType)
	}
	mt = strings.ToLower(mt)
	if alias, ok := typeAliases[mt]; ok {
		return alias
	}
	return mt
}

// Normalizer bounds an image to a fixed box and re-encodes it as JPEG.
type Normalizer struct {
	maxBytes  int
	maxPixels int64
	width    int
	height   int
	quality  int
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		maxBytes:  MaxUploadBytes,
		maxPixels: MaxPixels,
		width:     MaxWidth,
		height:    MaxHeight,
		quality:   JPEGQuality,
	}
}

// CheckSize rejects payloads over the ceiling without looking at their content.
func (n *Normalizer) CheckSize(size int64) error {
	if size > int64(n.maxBytes) {
		return apperrors.New(apperrors.KindPayloadTooLarge,
			fmt.Sprintf("image exceeds the %d MiB limit", n.maxBytes>>20))
	}
	return nil
}

// Normalize validates raw against the size ceiling, the format allow-list and
// the pixel budget, then fits it inside the bounding box without upscaling and encodes it as
// JPEG. raw is never modified.
func (n *Normalizer) Normalize(declaredType string, raw []byte) ([]byte, error) {
	if err := n.CheckSize(int64(len(raw))); err != nil {
		return nil, err
	}
	if !Allowed(declaredType) {
		return nil, apperrors.New(apperrors.KindUnsupportedMediaType,
			fmt.Sprintf("unsupported image type %q", declaredType))
	}
	sniffed := canonicalType(mimetype.Detect(raw).String())
	if strings.HasPrefix(sniffed, "image/") && !allowedTypes[sniffed] {
		return nil, apperrors.New(apperrors.KindUnsupportedMediaType,
			fmt.Sprintf("unsupported image content %q", sniffed))
	}

	// only the header is read here; the bitmap is allocated by Decode below
	header, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidImage, "image could not be decoded", err)
	}
	if int64(header.Width)*int64(header.Height) > n.maxPixels {
		return nil, apperrors.New(apperrors.KindPayloadTooLarge,
			fmt.Sprintf("image dimensions %dx%d exceed the %d megapixel limit", header.Width, header.Height, n.maxPixels/1_000_000))
	}

	src, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidImage, "image could not be decoded", err)
	}

	fitted := imaging.Fit(src, n.width, n.height, imaging.Lanczos)
	b := fitted.Bounds()
	// JPEG has no alpha channel; transparent pixels become white instead of black.
	flat := imaging.New(b.Dx(), b.Dy(), color.White)
	flat = imaging.Overlay(flat, fitted, image.Pt(0, 0), 1.0)

	var out bytes.Buffer
	if err := imaging.Encode(&out, flat, imaging.JPEG, imaging.JPEGQuality(n.quality)); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidImage, "image could not be encoded", err)
	}
	return out.Bytes(), nil
}

// Package image downsizes incident photo attachments before they are
// stored. Field connections are slow; the pipeline budget per image is
// 50KB.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

const (
	// MaxSizeBytes is the hard budget for a stored attachment.
	MaxSizeBytes = 50 * 1024

	firstPassWidth   = 800
	firstPassQuality = 60
	retryWidth       = 600
	retryQuality     = 40
)

// ErrTooLarge means the image could not be brought under budget even at
// the most aggressive settings.
var ErrTooLarge = errors.New("image too large even after compression")

// Orientation extracts the EXIF orientation tag, defaulting to 1.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// orient bakes the EXIF orientation into the pixels so the stored JPEG
// renders upright everywhere.
func orient(img image.Image, orientation int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch orientation {
	case 3: // rotated 180
		out := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(w-1-x, h-1-y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
		return out
	case 6: // rotated 90 CW
		out := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(h-1-y, x, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
		return out
	case 8: // rotated 90 CCW
		out := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(y, w-1-x, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
		return out
	default:
		return img
	}
}

// ScaleDown re-encodes an attachment to fit the size budget. It resizes
// to 800px width at quality 60 first, retries at 600px/40 if still over
// budget, and fails with ErrTooLarge if even that is not enough.
func ScaleDown(data []byte) ([]byte, error) {
	orientation := Orientation(data)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if orientation != 1 {
		img = orient(img, orientation)
	}

	out, err := encodeScaled(img, firstPassWidth, firstPassQuality)
	if err != nil {
		return nil, err
	}
	if len(out) > MaxSizeBytes {
		log.Warnf("Image still %d bytes after first pass, retrying aggressively", len(out))
		out, err = encodeScaled(img, retryWidth, retryQuality)
		if err != nil {
			return nil, err
		}
	}
	if len(out) > MaxSizeBytes {
		log.Errorf("Failed to compress image under %d bytes, final size %d", MaxSizeBytes, len(out))
		return nil, ErrTooLarge
	}

	log.Infof("Image compressed: %d bytes -> %d bytes", len(data), len(out))
	return out, nil
}

// encodeScaled resizes to at most maxWidth (never enlarging) and encodes
// as JPEG at the given quality.
func encodeScaled(img image.Image, maxWidth, quality int) ([]byte, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxWidth {
		scale := float64(maxWidth) / float64(w)
		newW := maxWidth
		newH := int(float64(h) * scale)
		scaled := image.NewRGBA(image.Rect(0, 0, newW, newH))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

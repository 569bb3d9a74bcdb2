package media

import (
	"context"
	"fmt"
	"image"
	"io"

	"media-preparser/internal/filesystem"
	"media-preparser/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageDimension is the maximum width or height decoded at full size.
	MaxImageDimension = 4096

	// MaxImagePixels caps the decoded pixel count (~80MB in RGBA).
	MaxImagePixels = 20_000_000
)

// ImageDimensions holds image width and height.
type ImageDimensions struct {
	Width  int
	Height int
}

// DecodeDimensions reads only the image header.
func DecodeDimensions(r io.Reader) (*ImageDimensions, string, error) {
	config, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, "", err
	}
	return &ImageDimensions{Width: config.Width, Height: config.Height}, format, nil
}

// GetImageDimensions returns image dimensions without fully decoding the image.
func GetImageDimensions(ctx context.Context, path string, retry filesystem.RetryConfig) (*ImageDimensions, error) {
	file, err := filesystem.Open(ctx, path, retry)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	dims, _, err := DecodeDimensions(file)
	return dims, err
}

// constrain scales width x height down until it fits both limits.
func constrain(width, height, maxDimension, maxPixels int) (int, int) {
	tw, th := width, height
	if width > maxDimension || height > maxDimension {
		if width > height {
			tw = maxDimension
			th = height * maxDimension / width
		} else {
			th = maxDimension
			tw = width * maxDimension / height
		}
	}
	if tw*th > maxPixels {
		scale := float64(maxPixels) / float64(tw*th)
		tw = int(float64(tw) * scale)
		th = int(float64(th) * scale)
	}
	return max(tw, 1), max(th, 1)
}

// LoadImageConstrained loads an image, downscaling it when it exceeds the
// size limits.
func LoadImageConstrained(ctx context.Context, path string, retry filesystem.RetryConfig, maxDimension, maxPixels int) (image.Image, error) {
	dims, err := GetImageDimensions(ctx, path, retry)
	if err != nil {
		logging.Debug("Could not get image dimensions for %s: %v, loading unconstrained", path, err)
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	if dims.Width <= maxDimension && dims.Height <= maxDimension && dims.Width*dims.Height <= maxPixels {
		return img, nil
	}

	tw, th := constrain(dims.Width, dims.Height, maxDimension, maxPixels)
	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, dims.Width, dims.Height, tw, th)
	return imaging.Resize(img, tw, th, imaging.Lanczos), nil
}

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"media-preparser/internal/filesystem"
	"media-preparser/internal/logging"

	"github.com/dhowden/tag"
)

// ErrNoPicture is returned when a file carries no embedded picture.
var ErrNoPicture = errors.New("no embedded picture")

// ReadTags reads the ID3, MP4, FLAC or OGG tags of a local file.
func ReadTags(ctx context.Context, path string, retry filesystem.RetryConfig) (tag.Metadata, error) {
	f, err := filesystem.Open(ctx, path, retry)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close %s: %v", path, err)
		}
	}()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("reading tags of %s: %w", path, err)
	}
	return m, nil
}

// EmbeddedPicture returns the cover picture stored in a file's tags.
func EmbeddedPicture(ctx context.Context, path string, retry filesystem.RetryConfig) (*tag.Picture, error) {
	m, err := ReadTags(ctx, path, retry)
	if err != nil {
		return nil, err
	}
	p := m.Picture()
	if p == nil || len(p.Data) == 0 {
		return nil, ErrNoPicture
	}
	return p, nil
}

func decodePicture(p *tag.Picture) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding embedded %s picture: %w", p.MIMEType, err)
	}
	return img, nil
}

// EmbeddedImage decodes the cover picture stored in a file's tags.
func EmbeddedImage(ctx context.Context, path string, retry filesystem.RetryConfig) (image.Image, error) {
	p, err := EmbeddedPicture(ctx, path, retry)
	if err != nil {
		return nil, err
	}
	return decodePicture(p)
}

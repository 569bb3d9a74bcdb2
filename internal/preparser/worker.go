package preparser

import (
	"context"
	"image"

	"media-preparser/internal/item"
)

// ParseOutput carries what a parser discovered besides item metadata.
type ParseOutput struct {
	// Subtree holds sub-items when Options.Subitems was set.
	Subtree *item.Node
	// Attachments holds embedded resources such as cover art.
	Attachments []item.Attachment
}

// Parser fills in an item's metadata. It runs on the parse executor.
type Parser interface {
	Parse(ctx context.Context, it *item.Item, opts Options) (*ParseOutput, error)
}

// MetaFetcher enriches an item's metadata from local or network sources.
type MetaFetcher interface {
	FetchMeta(ctx context.Context, it *item.Item, opts Options) error
}

// Thumbnailer produces a picture of an item.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, it *item.Item, seek SeekArg) (image.Image, error)
}

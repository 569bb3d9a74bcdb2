package parser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"media-preparser/internal/filesystem"
	"media-preparser/internal/item"
	"media-preparser/internal/logging"
	"media-preparser/internal/mediatypes"
	"media-preparser/internal/metrics"
	"media-preparser/internal/preparser"
	"media-preparser/internal/workers"
)

// DefaultMaxSubitems caps the children listed for one directory or playlist.
const DefaultMaxSubitems = 10000

// ErrUnsupported is returned for files the parser knows nothing about.
var ErrUnsupported = errors.New("unsupported media type")

// Config configures a Parser.
type Config struct {
	FFprobePath string
	Retry       filesystem.RetryConfig
	MaxSubitems int
	// CheckWorkers bounds concurrent existence checks of playlist entries.
	CheckWorkers int
}

// Parser implements preparser.Parser.
type Parser struct {
	cfg Config
}

// New creates a parser, filling in defaults.
func New(cfg Config) *Parser {
	if cfg.MaxSubitems <= 0 {
		cfg.MaxSubitems = DefaultMaxSubitems
	}
	cfg.CheckWorkers = workers.Resolve(cfg.CheckWorkers, workers.ForIO, 32)
	return &Parser{cfg: cfg}
}

// Parse detects the item's type and fills in its metadata.
func (p *Parser) Parse(ctx context.Context, it *item.Item, opts preparser.Options) (*preparser.ParseOutput, error) {
	path := it.Path()
	if path == "" {
		return p.parseRemote(it)
	}

	info, err := filesystem.Stat(ctx, path, p.cfg.Retry)
	if err != nil {
		return nil, err
	}

	var (
		out  *preparser.ParseOutput
		kind mediatypes.FileType
	)
	if info.IsDir() {
		kind = mediatypes.FileTypeFolder
		it.SetType(kind)
		out, err = p.parseDir(ctx, it, path, opts)
	} else {
		kind = mediatypes.GetFileType(mediatypes.Ext(path))
		it.SetType(kind)
		it.SetMetaIfEmpty(item.MetaMimeType, mediatypes.GetMimeType(mediatypes.Ext(path)))

		switch kind {
		case mediatypes.FileTypeAudio:
			out, err = p.parseAudio(ctx, it, path)
		case mediatypes.FileTypeVideo:
			out, err = p.parseVideo(ctx, it, path)
		case mediatypes.FileTypeImage:
			out, err = p.parseImage(ctx, it, path)
		case mediatypes.FileTypePlaylist:
			out, err = p.parsePlaylist(ctx, it, path, opts)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, it.Name())
		}
	}
	if err != nil {
		return nil, err
	}

	it.SetMetaIfEmpty(item.MetaTitle, titleFromName(it.Name(), kind))
	metrics.ParsedItemsTotal.WithLabelValues(string(kind)).Inc()
	if out.Subtree != nil {
		metrics.SubitemsDiscovered.Add(float64(out.Subtree.Len()))
	}
	logging.Debug("Parsed %s as %s (%d attachments)", it.URI(), kind, len(out.Attachments))
	return out, nil
}

// parseRemote only has the URI to go on.
func (p *Parser) parseRemote(it *item.Item) (*preparser.ParseOutput, error) {
	ext := mediatypes.Ext(it.Name())
	kind := mediatypes.GetFileType(ext)
	it.SetType(kind)
	if kind != mediatypes.FileTypeOther {
		it.SetMetaIfEmpty(item.MetaMimeType, mediatypes.GetMimeType(ext))
	}
	if it.Name() != "" && it.Name() != "/" {
		it.SetMetaIfEmpty(item.MetaTitle, titleFromName(it.Name(), kind))
	}
	metrics.ParsedItemsTotal.WithLabelValues(string(kind)).Inc()
	return &preparser.ParseOutput{}, nil
}

func titleFromName(name string, kind mediatypes.FileType) string {
	if kind == mediatypes.FileTypeFolder {
		return name
	}
	return strings.TrimSuffix(name, mediatypes.Ext(name))
}

// setNumber records n, or n/total when the total is known.
func setNumber(it *item.Item, key item.MetaKey, n, total int) {
	switch {
	case n <= 0:
	case total > 0:
		it.SetMetaIfEmpty(key, fmt.Sprintf("%d/%d", n, total))
	default:
		it.SetMetaIfEmpty(key, strconv.Itoa(n))
	}
}

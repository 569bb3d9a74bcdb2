package parser

import (
	"context"
	"path/filepath"
	"strings"

	"media-preparser/internal/filesystem"
	"media-preparser/internal/item"
	"media-preparser/internal/logging"
	"media-preparser/internal/mediatypes"
	"media-preparser/internal/playlist"
	"media-preparser/internal/preparser"

	"golang.org/x/sync/errgroup"
)

// parseDir lists the media entries of a directory in name order. Hidden
// entries are skipped.
func (p *Parser) parseDir(ctx context.Context, it *item.Item, path string, opts preparser.Options) (*preparser.ParseOutput, error) {
	out := &preparser.ParseOutput{}
	if !opts.Subitems {
		return out, nil
	}

	entries, err := filesystem.ReadDir(ctx, path, p.cfg.Retry)
	if err != nil {
		return nil, err
	}

	root := item.NewNode(it.Hold())
	for _, e := range entries {
		if root.Len() >= p.cfg.MaxSubitems {
			logging.Warn("Directory %s has more than %d entries, truncating", path, p.cfg.MaxSubitems)
			break
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		var kind mediatypes.FileType
		if e.IsDir() {
			kind = mediatypes.FileTypeFolder
		} else {
			kind = mediatypes.GetFileType(mediatypes.Ext(name))
			if kind == mediatypes.FileTypeOther {
				continue
			}
		}

		child := item.New(filepath.Join(path, name))
		child.SetType(kind)
		root.Add(item.NewNode(child))
	}

	out.Subtree = root
	return out, nil
}

// parsePlaylist reads the playlist title and, when asked, its entries.
// Local entries that no longer exist are dropped; the remaining ones keep
// playlist order.
func (p *Parser) parsePlaylist(ctx context.Context, it *item.Item, path string, opts preparser.Options) (*preparser.ParseOutput, error) {
	f, err := filesystem.Open(ctx, path, p.cfg.Retry)
	if err != nil {
		return nil, err
	}
	pl, err := playlist.Parse(f, path, filepath.Dir(path))
	f.Close()
	if err != nil {
		return nil, err
	}

	it.SetMetaIfEmpty(item.MetaTitle, pl.Title)

	out := &preparser.ParseOutput{}
	if !opts.Subitems {
		return out, nil
	}

	entries := pl.Entries
	if len(entries) > p.cfg.MaxSubitems {
		logging.Warn("Playlist %s has %d entries, keeping the first %d", path, len(entries), p.cfg.MaxSubitems)
		entries = entries[:p.cfg.MaxSubitems]
	}

	exists := make([]bool, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.CheckWorkers)
	for i, e := range entries {
		if strings.Contains(e.Location, "://") {
			exists[i] = true
			continue
		}
		g.Go(func() error {
			if _, err := filesystem.Stat(gctx, e.Location, p.cfg.Retry); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logging.Debug("Playlist %s: skipping %s: %v", path, e.Location, err)
				return nil
			}
			exists[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	root := item.NewNode(it.Hold())
	for i, e := range entries {
		if !exists[i] {
			continue
		}
		child := item.New(e.Location)
		child.SetMetaIfEmpty(item.MetaTitle, e.Title)
		if e.Duration > 0 {
			child.SetDuration(e.Duration)
		}
		root.Add(item.NewNode(child))
	}

	out.Subtree = root
	return out, nil
}

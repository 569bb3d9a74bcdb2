package parser

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"media-preparser/internal/filesystem"
	"media-preparser/internal/item"
	"media-preparser/internal/logging"
	"media-preparser/internal/media"
	"media-preparser/internal/preparser"

	"github.com/dhowden/tag"
)

// probeTags maps container tags onto item metadata.
var probeTags = map[string]item.MetaKey{
	"title":        item.MetaTitle,
	"artist":       item.MetaArtist,
	"album":        item.MetaAlbum,
	"album_artist": item.MetaAlbumArtist,
	"genre":        item.MetaGenre,
	"date":         item.MetaDate,
	"track":        item.MetaTrackNumber,
	"disc":         item.MetaDiscNumber,
	"comment":      item.MetaDescription,
	"description":  item.MetaDescription,
}

func applyProbe(it *item.Item, res *media.ProbeResult) {
	if res.Duration > 0 {
		it.SetDuration(res.Duration)
	}
	if res.Width > 0 && res.Height > 0 {
		it.SetMetaIfEmpty(item.MetaWidth, strconv.Itoa(res.Width))
		it.SetMetaIfEmpty(item.MetaHeight, strconv.Itoa(res.Height))
	}
	it.SetMetaIfEmpty(item.MetaVideoCodec, res.VideoCodec)
	it.SetMetaIfEmpty(item.MetaAudioCodec, res.AudioCodec)
	for k, v := range res.Tags {
		if key, ok := probeTags[k]; ok {
			it.SetMetaIfEmpty(key, v)
		}
	}
}

func applyTags(it *item.Item, m tag.Metadata) {
	it.SetMetaIfEmpty(item.MetaTitle, m.Title())
	it.SetMetaIfEmpty(item.MetaArtist, m.Artist())
	it.SetMetaIfEmpty(item.MetaAlbum, m.Album())
	it.SetMetaIfEmpty(item.MetaAlbumArtist, m.AlbumArtist())
	it.SetMetaIfEmpty(item.MetaGenre, m.Genre())
	if y := m.Year(); y > 0 {
		it.SetMetaIfEmpty(item.MetaDate, strconv.Itoa(y))
	}
	track, tracks := m.Track()
	setNumber(it, item.MetaTrackNumber, track, tracks)
	disc, discs := m.Disc()
	setNumber(it, item.MetaDiscNumber, disc, discs)
}

func pictureAttachment(p *tag.Picture) item.Attachment {
	ext := p.Ext
	if ext == "" {
		ext = "jpg"
	}
	return item.Attachment{
		Name:     "cover." + ext,
		MIMEType: p.MIMEType,
		Data:     p.Data,
	}
}

// parseAudio reads embedded tags and asks ffprobe for the duration. Either
// source is enough; the item fails only when both do.
func (p *Parser) parseAudio(ctx context.Context, it *item.Item, path string) (*preparser.ParseOutput, error) {
	out := &preparser.ParseOutput{}

	m, tagErr := media.ReadTags(ctx, path, p.cfg.Retry)
	if tagErr == nil {
		applyTags(it, m)
		if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
			out.Attachments = append(out.Attachments, pictureAttachment(pic))
		}
	} else {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.Debug("No readable tags in %s: %v", path, tagErr)
	}

	res, probeErr := media.Probe(ctx, p.cfg.FFprobePath, path)
	if probeErr == nil {
		applyProbe(it, res)
	} else {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.Debug("ffprobe failed for %s: %v", path, probeErr)
	}

	if tagErr != nil && probeErr != nil {
		return nil, fmt.Errorf("parsing audio %s: %w", path, errors.Join(tagErr, probeErr))
	}
	return out, nil
}

func (p *Parser) parseVideo(ctx context.Context, it *item.Item, path string) (*preparser.ParseOutput, error) {
	res, err := media.Probe(ctx, p.cfg.FFprobePath, path)
	if err != nil {
		return nil, fmt.Errorf("parsing video %s: %w", path, err)
	}
	applyProbe(it, res)
	return &preparser.ParseOutput{}, nil
}

func (p *Parser) parseImage(ctx context.Context, it *item.Item, path string) (*preparser.ParseOutput, error) {
	f, err := filesystem.Open(ctx, path, p.cfg.Retry)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dims, format, err := media.DecodeDimensions(f)
	if err != nil {
		return nil, fmt.Errorf("parsing image %s: %w", path, err)
	}
	it.SetMetaIfEmpty(item.MetaWidth, strconv.Itoa(dims.Width))
	it.SetMetaIfEmpty(item.MetaHeight, strconv.Itoa(dims.Height))
	logging.Debug("Image %s: %s %dx%d", path, format, dims.Width, dims.Height)
	return &preparser.ParseOutput{}, nil
}

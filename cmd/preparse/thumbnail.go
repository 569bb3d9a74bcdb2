package main

import (
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"media-preparser/internal/item"
	"media-preparser/internal/preparser"
	"media-preparser/internal/startup"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type thumbnailFlags struct {
	at        time.Duration
	pos       float64
	fast      bool
	timeout   time.Duration
	noTimeout bool
	output    string
	size      int
	quality   int
}

func newThumbnailCmd(opts *options) *cobra.Command {
	f := &thumbnailFlags{}
	cmd := &cobra.Command{
		Use:   "thumbnail PATH",
		Short: "Write a JPEG thumbnail of an image, video or audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThumbnail(cmd, opts, f, args[0])
		},
	}
	cmd.Flags().DurationVar(&f.at, "time", 0, "Seek to this time")
	cmd.Flags().Float64Var(&f.pos, "pos", 0, "Seek to this fraction of the duration, 0 to 1")
	cmd.Flags().BoolVar(&f.fast, "fast", false, "Seek to the nearest keyframe")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Deadline (0 uses the configured default)")
	cmd.Flags().BoolVar(&f.noTimeout, "no-timeout", false, "Disable the deadline")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file (default: <name>.jpg in the current directory)")
	cmd.Flags().IntVar(&f.size, "size", 0, "Longest edge in pixels (0 uses the configured size)")
	cmd.Flags().IntVar(&f.quality, "quality", 0, "JPEG quality (0 uses the configured quality)")
	cmd.MarkFlagsMutuallyExclusive("time", "pos")
	cmd.MarkFlagsMutuallyExclusive("timeout", "no-timeout")
	return cmd
}

// seekArg builds the seek argument from whichever of --time and --pos was set.
func (f *thumbnailFlags) seekArg(cmd *cobra.Command) preparser.SeekArg {
	speed := preparser.SeekPrecise
	if f.fast {
		speed = preparser.SeekFast
	}
	switch {
	case cmd.Flags().Changed("time"):
		return preparser.SeekToTime(f.at, speed)
	case cmd.Flags().Changed("pos"):
		return preparser.SeekToPosition(f.pos, speed)
	default:
		return preparser.SeekArg{Speed: speed}
	}
}

func (f *thumbnailFlags) deadline() time.Duration {
	if f.noTimeout {
		return preparser.NoTimeout
	}
	return f.timeout
}

func outputPath(src, output string) string {
	if output != "" {
		return output
	}
	name := filepath.Base(src)
	if strings.Contains(src, "://") {
		name = filepath.Base(strings.TrimRight(src, "/"))
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}

func runThumbnail(cmd *cobra.Command, opts *options, f *thumbnailFlags, src string) error {
	seek := f.seekArg(cmd)
	if err := seek.Validate(); err != nil {
		return err
	}
	if f.timeout < 0 {
		return errors.New("timeout must not be negative")
	}

	pp, config, err := newPreparser(opts, preparser.TypeThumbnail, func(c *startup.Config) {
		if f.size > 0 {
			c.Thumbnails.Size = f.size
		}
	})
	if err != nil {
		return err
	}
	defer pp.Delete()

	quality := config.Thumbnails.Quality
	if f.quality > 0 {
		quality = f.quality
	}

	if !strings.Contains(src, "://") {
		if abs, err := filepath.Abs(src); err == nil {
			src = abs
		}
	}
	it := item.New(src)
	defer it.Release()

	type result struct {
		status preparser.Status
		img    image.Image
	}
	done := make(chan result, 1)
	id, err := pp.GenerateThumbnail(it, seek, f.deadline(), preparser.ThumbnailCallbacks{
		OnEnded: func(_ *item.Item, status preparser.Status, img image.Image, _ any) {
			done <- result{status, img}
		},
	}, nil)
	if err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var res result
	select {
	case res = <-done:
	case <-sig:
		pp.Cancel(id)
		res = <-done
	}
	if res.status != preparser.StatusSuccess {
		return fmt.Errorf("thumbnail of %s: %w", src, res.status.Err())
	}

	out := outputPath(src, f.output)
	if err := imaging.Save(res.img, out, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	size := "unknown size"
	if info, err := os.Stat(out); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	b := res.img.Bounds()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d, %s (%s)\n", out, b.Dx(), b.Dy(), size, seek)
	return nil
}

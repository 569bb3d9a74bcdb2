package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"time"

	"media-preparser/internal/logging"
	"media-preparser/internal/metrics"
	"media-preparser/internal/preparser"
)

// defaultFrameOffset is where SeekNone grabs its frame, skipping black
// leaders most videos start with.
const defaultFrameOffset = time.Second

// seekOffset resolves a seek argument into an offset from the start.
// Position seeks need the duration; a zero duration maps them to the start.
func seekOffset(seek preparser.SeekArg, duration time.Duration) time.Duration {
	switch seek.Type {
	case preparser.SeekTime:
		return seek.Time
	case preparser.SeekPosition:
		return time.Duration(seek.Position * float64(duration))
	default:
		if duration > 0 && duration <= defaultFrameOffset {
			return 0
		}
		return defaultFrameOffset
	}
}

func formatOffset(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// frameArgs builds the ffmpeg command line extracting one frame as PNG on
// stdout. Fast seeks stop at the keyframe preceding offset.
func frameArgs(src string, offset time.Duration, speed preparser.SeekSpeed) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if offset > 0 {
		args = append(args, "-ss", formatOffset(offset))
		if speed == preparser.SeekFast {
			args = append(args, "-noaccurate_seek")
		}
	}
	return append(args,
		"-i", src,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
}

func seekLabel(seek preparser.SeekArg) string {
	if seek.Type == preparser.SeekNone {
		return "none"
	}
	return seek.Speed.String()
}

// ExtractFrame grabs a single frame of src with ffmpeg.
func ExtractFrame(ctx context.Context, ffmpeg, src string, offset time.Duration, speed preparser.SeekSpeed) (image.Image, error) {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, ffmpeg, frameArgs(src, offset, speed)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame for %s at %s", src, formatOffset(offset))
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

// videoFrame extracts the frame selected by seek. Without an explicit seek
// a failed grab at the default offset falls back to the first frame.
func videoFrame(ctx context.Context, ffmpeg, src string, seek preparser.SeekArg, duration time.Duration) (image.Image, error) {
	start := time.Now()
	defer func() {
		metrics.ThumbnailFFmpegDuration.WithLabelValues(seekLabel(seek)).Observe(time.Since(start).Seconds())
	}()

	offset := seekOffset(seek, duration)
	img, err := ExtractFrame(ctx, ffmpeg, src, offset, seek.Speed)
	if err == nil || seek.Type != preparser.SeekNone || offset == 0 || ctx.Err() != nil {
		return img, err
	}

	logging.Debug("Frame grab at %s failed for %s: %v, retrying at start", formatOffset(offset), src, err)
	return ExtractFrame(ctx, ffmpeg, src, 0, seek.Speed)
}

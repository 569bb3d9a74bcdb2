package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProbeResult is the subset of ffprobe output the preparser consumes.
type ProbeResult struct {
	Format     string
	Duration   time.Duration
	Width      int
	Height     int
	VideoCodec string
	AudioCodec string
	// Tags are the container tags with lower-cased keys.
	Tags map[string]string
}

// HasVideo reports whether a non-cover video stream was found.
func (p *ProbeResult) HasVideo() bool {
	return p.VideoCodec != ""
}

type probeOutput struct {
	Format struct {
		FormatName string            `json:"format_name"`
		Duration   string            `json:"duration"`
		Tags       map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		CodecType   string `json:"codec_type"`
		CodecName   string `json:"codec_name"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		Duration    string `json:"duration"`
		Disposition struct {
			AttachedPic int `json:"attached_pic"`
		} `json:"disposition"`
	} `json:"streams"`
}

func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// parseProbe decodes "-print_format json -show_format -show_streams" output.
func parseProbe(data []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding ffprobe output: %w", err)
	}

	res := &ProbeResult{
		Format:   out.Format.FormatName,
		Duration: parseSeconds(out.Format.Duration),
		Tags:     make(map[string]string, len(out.Format.Tags)),
	}
	for k, v := range out.Format.Tags {
		res.Tags[strings.ToLower(k)] = v
	}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if s.Disposition.AttachedPic == 1 || res.VideoCodec != "" {
				continue
			}
			res.VideoCodec = s.CodecName
			res.Width, res.Height = s.Width, s.Height
		case "audio":
			if res.AudioCodec == "" {
				res.AudioCodec = s.CodecName
			}
		}
		if res.Duration == 0 {
			res.Duration = parseSeconds(s.Duration)
		}
	}
	return res, nil
}

// Probe runs ffprobe on path, which may also be a URL ffprobe understands.
func Probe(ctx context.Context, ffprobe, path string) (*ProbeResult, error) {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}
	return parseProbe(stdout.Bytes())
}

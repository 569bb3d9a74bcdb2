package media

import (
	"slices"
	"strings"
	"testing"
	"time"

	"media-preparser/internal/preparser"
)

func TestSeekOffset(t *testing.T) {
	tests := []struct {
		name     string
		seek     preparser.SeekArg
		duration time.Duration
		want     time.Duration
	}{
		{"time", preparser.SeekToTime(5*time.Second, preparser.SeekFast), time.Minute, 5 * time.Second},
		{"position", preparser.SeekToPosition(0.25, preparser.SeekPrecise), 40 * time.Second, 10 * time.Second},
		{"position unknown duration", preparser.SeekToPosition(0.5, preparser.SeekPrecise), 0, 0},
		{"none", preparser.SeekArg{}, time.Minute, defaultFrameOffset},
		{"none short clip", preparser.SeekArg{}, 500 * time.Millisecond, 0},
		{"none unknown duration", preparser.SeekArg{}, 0, defaultFrameOffset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := seekOffset(tt.seek, tt.duration); got != tt.want {
				t.Errorf("seekOffset() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameArgs(t *testing.T) {
	tests := []struct {
		name    string
		offset  time.Duration
		speed   preparser.SeekSpeed
		wantPre string
	}{
		{"fast", 5 * time.Second, preparser.SeekFast, "-ss 5.000 -noaccurate_seek -i in.mp4"},
		{"precise", 1500 * time.Millisecond, preparser.SeekPrecise, "-ss 1.500 -i in.mp4"},
		{"start", 0, preparser.SeekFast, "-loglevel error -i in.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := frameArgs("in.mp4", tt.offset, tt.speed)
			line := strings.Join(args, " ")
			if !strings.Contains(line, tt.wantPre) {
				t.Errorf("args %q missing %q", line, tt.wantPre)
			}
			if args[len(args)-1] != "-" {
				t.Errorf("output must go to stdout, got %q", args[len(args)-1])
			}
			if !slices.Contains(args, "-frames:v") {
				t.Errorf("args %q do not limit frames", line)
			}
		})
	}
}

func TestSeekLabel(t *testing.T) {
	if got := seekLabel(preparser.SeekArg{}); got != "none" {
		t.Errorf("seekLabel(none) = %q", got)
	}
	if got := seekLabel(preparser.SeekToTime(time.Second, preparser.SeekFast)); got != "fast" {
		t.Errorf("seekLabel(fast) = %q", got)
	}
}

package preparser

import (
	"fmt"
	"math"
	"time"
)

// SeekType selects how a thumbnail position is expressed.
type SeekType int

const (
	// SeekNone takes the thumbnail wherever the thumbnailer sees fit.
	SeekNone SeekType = iota
	// SeekTime seeks to SeekArg.Time.
	SeekTime
	// SeekPosition seeks to SeekArg.Position, a fraction of the duration.
	SeekPosition
)

// SeekSpeed trades accuracy for speed.
type SeekSpeed int

const (
	// SeekPrecise decodes up to the exact position.
	SeekPrecise SeekSpeed = iota
	// SeekFast stops at the nearest preceding keyframe.
	SeekFast
)

// SeekArg tells the thumbnailer where to take the picture. Only the payload
// matching Type is meaningful.
type SeekArg struct {
	Type     SeekType
	Time     time.Duration
	Position float64
	Speed    SeekSpeed
}

// SeekToTime returns a time-based seek argument.
func SeekToTime(t time.Duration, speed SeekSpeed) SeekArg {
	return SeekArg{Type: SeekTime, Time: t, Speed: speed}
}

// SeekToPosition returns a position-based seek argument, pos in [0,1].
func SeekToPosition(pos float64, speed SeekSpeed) SeekArg {
	return SeekArg{Type: SeekPosition, Position: pos, Speed: speed}
}

// Validate checks the payload for the selected type.
func (s SeekArg) Validate() error {
	switch s.Type {
	case SeekNone:
	case SeekTime:
		if s.Time < 0 {
			return fmt.Errorf("%w: negative time %v", ErrInvalidSeek, s.Time)
		}
	case SeekPosition:
		if math.IsNaN(s.Position) || s.Position < 0 || s.Position > 1 {
			return fmt.Errorf("%w: position %v outside [0,1]", ErrInvalidSeek, s.Position)
		}
	default:
		return fmt.Errorf("%w: unknown type %d", ErrInvalidSeek, s.Type)
	}
	if s.Speed != SeekPrecise && s.Speed != SeekFast {
		return fmt.Errorf("%w: unknown speed %d", ErrInvalidSeek, s.Speed)
	}
	return nil
}

func (s SeekSpeed) String() string {
	if s == SeekFast {
		return "fast"
	}
	return "precise"
}

// String is stable and used as part of thumbnail cache keys.
func (s SeekArg) String() string {
	switch s.Type {
	case SeekTime:
		return fmt.Sprintf("time:%d:%s", s.Time.Milliseconds(), s.Speed)
	case SeekPosition:
		return fmt.Sprintf("pos:%.4f:%s", s.Position, s.Speed)
	default:
		return "none"
	}
}

package preparser

import "errors"

// Status is the terminal status delivered to completion callbacks.
type Status int

const (
	// StatusSuccess means the request completed. For preparse requests at
	// least one domain succeeded.
	StatusSuccess Status = iota
	// StatusTimeout means the deadline expired first.
	StatusTimeout
	// StatusInterrupted means the request was cancelled.
	StatusInterrupted
	// StatusError means every requested domain failed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTimeout:
		return "timeout"
	case StatusInterrupted:
		return "interrupted"
	default:
		return "error"
	}
}

// Err maps a status to ErrTimeout, ErrInterrupted or ErrFailed, or nil for
// success.
func (s Status) Err() error {
	switch s {
	case StatusSuccess:
		return nil
	case StatusTimeout:
		return ErrTimeout
	case StatusInterrupted:
		return ErrInterrupted
	default:
		return ErrFailed
	}
}

// Validation errors, returned synchronously together with InvalidID.
var (
	ErrInvalidConfig  = errors.New("invalid preparser configuration")
	ErrNilItem        = errors.New("item is nil")
	ErrNoCallback     = errors.New("completion callback is nil")
	ErrNoDomain       = errors.New("no preparser domain requested")
	ErrUnknownFlags   = errors.New("unknown preparser flags")
	ErrDomainDisabled = errors.New("preparser domain not enabled")
	ErrInvalidSeek    = errors.New("invalid seek argument")
	ErrClosed         = errors.New("preparser deleted")
)

// Asynchronous outcomes, reported through callbacks.
var (
	ErrTimeout     = errors.New("preparse timed out")
	ErrInterrupted = errors.New("preparse interrupted")
	ErrFailed      = errors.New("preparse failed")
	ErrNoThumbnail = errors.New("thumbnailer returned no image")
)

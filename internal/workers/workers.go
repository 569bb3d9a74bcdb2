package workers

import (
	"runtime"
)

// Count returns GOMAXPROCS scaled by multiplier, at least 1 and at most
// limit (0 for no limit). GOMAXPROCS follows the container CPU quota.
//
// Typical multipliers:
//   - 1.0 for CPU-bound work (frame decoding, resizing)
//   - 2.0 for I/O-bound work (tag reading, HTTP lookups)
//   - 1.5 for mixed work
func Count(multiplier float64, limit int) int {
	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU returns a worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns a worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns a worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// Resolve returns configured when it is positive, otherwise auto(limit).
// Configured values are capped at limit as well.
func Resolve(configured int, auto func(limit int) int, limit int) int {
	if configured <= 0 {
		return auto(limit)
	}
	if limit > 0 && configured > limit {
		return limit
	}
	return configured
}

package segments

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTime is returned by ParseTime for malformed input.
var ErrInvalidTime = errors.New("invalid time")

// FormatTime renders ms as HH:MM:SS.mmm, or HH:MM:SS without milliseconds.
// Negative values render as zero.
func FormatTime(ms int64, withMillis bool) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	if !withMillis {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

// ParseTime parses HH:MM:SS.mmm into milliseconds. Leading fields may be
// omitted ("MM:SS.mmm", "SS.mmm") and so may the fraction.
func ParseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTime)
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	parts := strings.Split(whole, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	var ms int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		// every field after the first is bounded by 60
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("%w: %q field %d out of range", ErrInvalidTime, s, i)
		}
		if ms > (math.MaxInt64/1000-v)/60 {
			return 0, fmt.Errorf("%w: %q too large", ErrInvalidTime, s)
		}
		ms = ms*60 + v
	}
	if ms > math.MaxInt64/1000-1 {
		return 0, fmt.Errorf("%w: %q too large", ErrInvalidTime, s)
	}
	ms *= 1000

	if hasFrac {
		if frac == "" || len(frac) > 3 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		v, err := strconv.ParseInt(frac+strings.Repeat("0", 3-len(frac)), 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		ms += v
	}
	return ms, nil
}

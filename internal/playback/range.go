package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// Range is an inclusive byte range of a track file.
type Range struct {
	Start int64
	End   int64
}

func (r Range) ContentLength() int64 {
	return r.End - r.Start + 1
}

func (r Range) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// ParseRange resolves a Range header against a file of size bytes. An empty
// header yields nil. Players seek with one range at a time, so only the
// first range of a list is served.
func ParseRange(header string, size int64) (*Range, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrInvalidRange
	}
	spec, _, _ = strings.Cut(spec, ",")
	first, last, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return nil, ErrInvalidRange
	}

	var r Range
	switch {
	case first == "":
		// suffix form: the last n bytes
		n, err := parseOffset(last)
		if err != nil || n == 0 {
			return nil, ErrInvalidRange
		}
		r = Range{Start: max(size-n, 0), End: size - 1}
	default:
		start, err := parseOffset(first)
		if err != nil {
			return nil, ErrInvalidRange
		}
		end := size - 1
		if last != "" {
			if end, err = parseOffset(last); err != nil {
				return nil, ErrInvalidRange
			}
		}
		r = Range{Start: start, End: min(end, size-1)}
		if start > end {
			return nil, ErrUnsatisfiable
		}
	}

	if r.Start >= size || r.End < r.Start {
		return nil, ErrUnsatisfiable
	}
	return &r, nil
}

func parseOffset(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, ErrInvalidRange
	}
	return v, nil
}

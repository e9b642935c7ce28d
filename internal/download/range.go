package download

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

// Span is an inclusive byte interval of a file.
type Span struct {
	First int64
	Last  int64
}

func (s Span) Length() int64 {
	return s.Last - s.First + 1
}

// Header renders the Content-Range value for a file of the given size.
func (s Span) Header(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", s.First, s.Last, size)
}

// ParseRange reads a single-range "bytes=" header. Only the first range of a
// multi-range request is honoured. An empty header yields a nil Span.
func ParseRange(header string, size int64) (*Span, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrInvalidRange
	}
	if first, _, multi := strings.Cut(spec, ","); multi {
		spec = strings.TrimSpace(first)
	}
	from, to, ok := strings.Cut(spec, "-")
	if !ok || strings.Contains(to, "-") {
		return nil, ErrInvalidRange
	}

	var span Span
	switch {
	case from == "":
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return nil, ErrInvalidRange
		}
		span = Span{First: max(size-n, 0), Last: size - 1}
	default:
		start, err := strconv.ParseInt(from, 10, 64)
		if err != nil || start < 0 {
			return nil, ErrInvalidRange
		}
		span = Span{First: start, Last: size - 1}
		if to != "" {
			if span.Last, err = strconv.ParseInt(to, 10, 64); err != nil {
				return nil, ErrInvalidRange
			}
		}
	}

	if span.First > span.Last || span.First >= size {
		return nil, ErrUnsatisfiable
	}
	span.Last = min(span.Last, size-1)
	return &span, nil
}

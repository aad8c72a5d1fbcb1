package proxy

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrInvalidRange is returned for Range headers that cannot be satisfied
var ErrInvalidRange = errors.New("invalid range")

var rangeRe = regexp.MustCompile(`^bytes=(\d+)?-(\d+)?`)

// ParseRange resolves a single "bytes=" range against a known length.
// Supported forms are a-b, a- and -n. Only the first range of a
// multi-range header is used. The result is clamped to [0, length-1].
func ParseRange(header string, length int64) (start, end int64, err error) {
	m := rangeRe.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}

	startStr, endStr := m[1], m[2]
	switch {
	case startStr != "" && endStr != "":
		start, _ = strconv.ParseInt(startStr, 10, 64)
		end, _ = strconv.ParseInt(endStr, 10, 64)
	case startStr != "":
		start, _ = strconv.ParseInt(startStr, 10, 64)
		end = length - 1
	case endStr != "":
		suffix, _ := strconv.ParseInt(endStr, 10, 64)
		start = length - suffix
		end = length - 1
	default:
		return 0, 0, fmt.Errorf("%w: empty range", ErrInvalidRange)
	}

	if start < 0 {
		start = 0
	}
	if end >= length {
		end = length - 1
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: start %d > end %d", ErrInvalidRange, start, end)
	}
	return start, end, nil
}

// capRange limits a range to at most max bytes
func capRange(start, end, max int64) int64 {
	if max > 0 && end-start+1 > max {
		return start + max - 1
	}
	return end
}

var totalRe = regexp.MustCompile(`/(\d+)`)

// totalFromContentRange extracts the total from "bytes 0-1023/123456"
func totalFromContentRange(v string) int64 {
	m := totalRe.FindStringSubmatch(v)
	if m == nil {
		return 0
	}
	n, _ := strconv.ParseInt(m[1], 10, 64)
	return n
}

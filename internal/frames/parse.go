package frames

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidRange = errors.New("invalid frame range format")

// Parse reads the String form of a range: comma-separated frames or
// inclusive "start-end" pairs. Whitespace around items is ignored and the
// empty string is the empty range.
func Parse(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, nil
	}

	var intervals []Interval
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return Range{}, fmt.Errorf("%w: empty item in %q", ErrInvalidRange, s)
		}

		parts := strings.Split(item, "-")
		if len(parts) > 2 {
			return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, item)
		}

		start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || parts[0] == "" {
			return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, item)
		}
		end := start
		if len(parts) == 2 {
			end, err = strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, item)
			}
		}
		intervals = append(intervals, Interval{Start: start, End: end})
	}

	return New(intervals...)
}

package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedDuration is returned for anything that is not an H:M:S string.
var ErrMalformedDuration = errors.New("malformed duration: expected H:M:S")

// ParseClockDuration converts an "H:M:S" string into total seconds.
// Each segment is an unsigned base-10 integer of any width.
func ParseClockDuration(s string) (int64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, ErrMalformedDuration
	}

	var values [3]uint64
	for i, p := range parts {
		if p == "" || !isDigits(p) {
			return 0, ErrMalformedDuration
		}
		v, err := strconv.ParseUint(p, 10, 63)
		if err != nil {
			return 0, ErrMalformedDuration
		}
		values[i] = v
	}

	hours, minutes, seconds := values[0], values[1], values[2]
	if hours > math.MaxInt64/3600 || minutes > math.MaxInt64/60 {
		return 0, ErrMalformedDuration
	}
	total := hours*3600 + minutes*60
	if total > math.MaxInt64 || seconds > math.MaxInt64-total {
		return 0, ErrMalformedDuration
	}
	return int64(total + seconds), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

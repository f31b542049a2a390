package ffmpeg

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseTimecode converts H:MM:SS or HH:MM:SS(.ff) into whole seconds.
// Fractional seconds are truncated.
func ParseTimecode(text string) (int, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed timecode %q", text)
	}

	sec := parts[2]
	if i := strings.IndexByte(sec, '.'); i >= 0 {
		frac := sec[i+1:]
		if frac != "" && !isDigits(frac) {
			return 0, fmt.Errorf("malformed timecode %q", text)
		}
		sec = sec[:i]
	}

	h, err := parseField(parts[0], 0)
	if err != nil {
		return 0, fmt.Errorf("malformed timecode %q: %w", text, err)
	}
	m, err := parseField(parts[1], 60)
	if err != nil {
		return 0, fmt.Errorf("malformed timecode %q: %w", text, err)
	}
	s, err := parseField(sec, 60)
	if err != nil {
		return 0, fmt.Errorf("malformed timecode %q: %w", text, err)
	}
	return h*3600 + m*60 + s, nil
}

// parseField digits only, below limit when limit > 0
func parseField(field string, limit int) (int, error) {
	if field == "" || !isDigits(field) {
		return 0, fmt.Errorf("invalid field %q", field)
	}
	if limit > 0 && len(field) > 2 {
		return 0, fmt.Errorf("invalid field %q", field)
	}
	v, err := strconv.Atoi(field)
	if err != nil {
		return 0, err
	}
	if limit > 0 && v >= limit {
		return 0, fmt.Errorf("field %q out of range", field)
	}
	return v, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Percent of current over duration in [0, 100]; 0 while duration is unknown
func Percent(current, duration int) float64 {
	if duration <= 0 || current <= 0 {
		return 0
	}
	p := 100 * float64(current) / float64(duration)
	if math.IsNaN(p) {
		return 0
	}
	return math.Min(p, 100)
}

package timebox

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const MinutesPerDay = 24 * 60

var ErrBadClock = errors.New("time must be HH:MM (24-hour)")

// ParseClock parses "HH:MM" into minutes since midnight. Single-digit hours
// ("9:05") are accepted; minutes always need two digits.
func ParseClock(s string) (int, error) {
	h, m, err := splitClock(s)
	if err != nil {
		return 0, err
	}
	if h > 23 {
		return 0, fmt.Errorf("%w: hour out of range in %q", ErrBadClock, s)
	}
	return h*60 + m, nil
}

// parseEnd is ParseClock but also accepts "24:00" as end of day.
func parseEnd(s string) (int, error) {
	h, m, err := splitClock(s)
	if err != nil {
		return 0, err
	}
	if h == 24 && m == 0 {
		return MinutesPerDay, nil
	}
	if h > 23 {
		return 0, fmt.Errorf("%w: hour out of range in %q", ErrBadClock, s)
	}
	return h*60 + m, nil
}

func splitClock(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hs) < 1 || len(hs) > 2 || len(ms) != 2 {
		return 0, 0, fmt.Errorf("%w: got %q", ErrBadClock, s)
	}
	h, err := atoiDigits(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: got %q", ErrBadClock, s)
	}
	m, err := atoiDigits(ms)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: got %q", ErrBadClock, s)
	}
	if m > 59 {
		return 0, 0, fmt.Errorf("%w: minute out of range in %q", ErrBadClock, s)
	}
	return h, m, nil
}

// atoiDigits rejects signs and spaces that strconv.Atoi would accept.
func atoiDigits(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}

// ParseRange parses a start/end pair and requires start < end.
func ParseRange(start, end string) (int, int, error) {
	s, err := ParseClock(start)
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	e, err := parseEnd(end)
	if err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}
	if e <= s {
		return 0, 0, fmt.Errorf("end %s must be after start %s", end, start)
	}
	return s, e, nil
}

// FormatClock renders minutes since midnight as "HH:MM"; 1440 renders as "24:00".
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes > MinutesPerDay {
		minutes = MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

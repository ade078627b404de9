package scheduling

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// FormatClock converts minutes since midnight to "HH:MM".
func FormatClock(minute int) string {
	if minute < 0 {
		minute = 0
	}
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseDate validates a YYYY-MM-DD calendar date and returns it normalized.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return "", fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	y, err := strconv.Atoi(s[0:4])
	if err != nil || y < 2000 || y > 2200 {
		return "", fmt.Errorf("invalid year in %q", s)
	}
	mo, err := strconv.Atoi(s[5:7])
	if err != nil || mo < 1 || mo > 12 {
		return "", fmt.Errorf("invalid month in %q", s)
	}
	d, err := strconv.Atoi(s[8:10])
	if err != nil || d < 1 || d > 31 {
		return "", fmt.Errorf("invalid day in %q", s)
	}
	return s, nil
}

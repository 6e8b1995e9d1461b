package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	measurementRe = regexp.MustCompile(`^([+-]?\d+(?:[.,]\d+)?)\s*([\p{L}%°µ/]*)$`)
	clockRe       = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// Measurement is a numeric reading with an optional unit, as typed on the shop floor.
type Measurement struct {
	Value float64
	Unit  string
}

// ParseMeasurement accepts inputs like "12.5", "12,5 mm" or "-0.02mm".
func ParseMeasurement(raw string) (Measurement, error) {
	s := strings.TrimSpace(raw)
	// Collapse inner whitespace so "12,5   mm" matches.
	s = spaceRe.ReplaceAllString(s, " ")

	m := measurementRe.FindStringSubmatch(s)
	if m == nil {
		return Measurement{}, fmt.Errorf("unable to parse measurement: %q", raw)
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return Measurement{}, fmt.Errorf("unable to parse measurement value %q: %w", m[1], err)
	}
	return Measurement{Value: value, Unit: m[2]}, nil
}

// ParseBool accepts yes/no style answers in English and German as well as true/false and 1/0.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "ja", "j", "1", "ok":
		return true, nil
	case "false", "no", "n", "nein", "0", "nok":
		return false, nil
	}
	return false, fmt.Errorf("unable to parse yes/no answer: %q", raw)
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
	Second int
}

// String formats the time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClockTime accepts "17:00", "7:30" or "17:00:00".
func ParseClockTime(raw string) (ClockTime, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ClockTime{}, fmt.Errorf("unable to parse clock time: %q", raw)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second := 0
	if m[3] != "" {
		second, _ = strconv.Atoi(m[3])
	}
	if hour > 23 || minute > 59 || second > 59 {
		return ClockTime{}, fmt.Errorf("clock time out of range: %q", raw)
	}
	return ClockTime{Hour: hour, Minute: minute, Second: second}, nil
}

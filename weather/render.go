package weather

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit is the temperature scale used when rendering.
type Unit int

const (
	Celsius Unit = iota
	Fahrenheit
)

// ParseUnit returns Fahrenheit for "fahrenheit" (any case) and Celsius otherwise.
func ParseUnit(s string) Unit {
	if strings.EqualFold(strings.TrimSpace(s), "fahrenheit") {
		return Fahrenheit
	}
	return Celsius
}

// ParseDays accepts a string of decimal digits. Anything else, and zero,
// yields 1; values above MaxDays are capped.
func ParseDays(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 1
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// only digits, so this is an overflow
		return MaxDays
	}
	return min(max(n, 1), MaxDays)
}

// Render formats a forecast one line per day.
func Render(f *Forecast, unit Unit) string {
	if len(f.Days) == 0 {
		return fmt.Sprintf("No weather data found for %s for the specified days.", f.Location)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Weather for %s:", f.Location)
	sym := "C"
	if unit == Fahrenheit {
		sym = "F"
	}
	for _, d := range f.Days {
		hi, lo, avg := d.MaxC, d.MinC, d.AvgC
		if unit == Fahrenheit {
			hi, lo, avg = d.MaxF, d.MinF, d.AvgF
		}
		fmt.Fprintf(&sb, "\nDate: %s, Max: %s°%s, Min: %s°%s, Avg: %s°%s, Condition: %s",
			d.Date, temp(hi), sym, temp(lo), sym, temp(avg), sym, d.Condition)
	}
	return sb.String()
}

func temp(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

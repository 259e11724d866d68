package inference

import (
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339, time.RFC3339Nano,
	"2006-01-02", "2006/01/02", "2006.01.02",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04:05.000",
	"01/02/2006", "1/2/2006", "02/01/2006", "01-02-2006", "02-01-2006", "02.01.2006",
	"1/2/2006 15:04", "1/2/2006 15:04:05", "01/02/2006 15:04:05",
	"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006", "02-Jan-2006", "Jan-2006",
	"January 2006", "Mon, 02 Jan 2006 15:04:05 MST",
}

// ParseTime tries a permissive list of layouts and returns the first match.
// Bare integers are rejected so numeric strings never read as years.
func ParseTime(s string) (time.Time, bool) {
	v := strings.TrimSpace(s)
	if len(v) < 6 || isDigits(v) {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// sampleIndices returns up to n evenly spaced positions out of total.
func sampleIndices(total, n int) []int {
	if n <= 0 || total <= n {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i * total / n
	}
	return out
}

// dateFraction parses a bounded, evenly spaced sample of values and returns the
// fraction that parse as dates.
func dateFraction(values []string, sampleSize int) float64 {
	if len(values) == 0 {
		return 0
	}
	idx := sampleIndices(len(values), sampleSize)
	ok := 0
	for _, i := range idx {
		if _, parsed := ParseTime(values[i]); parsed {
			ok++
		}
	}
	return float64(ok) / float64(len(idx))
}

// Package formatting provides human-readable formatting and parsing utilities
// for common value types such as byte sizes.
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Both spellings are base-1024: "MB" and "MiB" parse to the same count.
var (
	units    = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	iecUnits = []string{"B", "KIB", "MIB", "GIB", "TIB", "PIB", "EIB"}
)

var bytesPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]*)$`)

// FormatBytes converts a byte count to a human-readable string using base-1024 units.
// Negative counts keep their sign; negative precision values are clamped to zero.
func FormatBytes(n int64, precision int) string {
	if n == 0 {
		return "0 B"
	}
	if n < 0 {
		return "-" + FormatBytes(-n, precision)
	}

	precision = max(precision, 0)

	f := float64(n)
	i := min(int(math.Floor(math.Log(f)/math.Log(1024))), len(units)-1)
	if i == 0 {
		return strconv.FormatInt(n, 10) + " B"
	}

	size := f / math.Pow(1024, float64(i))
	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}

// ParseBytes parses a human-readable byte size string (e.g., "50MB", "1.5 GiB")
// into a byte count. A bare number is bytes. Units are case-insensitive, with
// an optional space before them. Results that overflow int64 are rejected.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	matches := bytesPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	unit := strings.ToUpper(matches[2])
	idx := 0
	if unit != "" {
		idx = slices.Index(units, unit)
		if idx == -1 {
			idx = slices.Index(iecUnits, unit)
		}
		if idx == -1 {
			return 0, fmt.Errorf("unknown byte size unit: %q", matches[2])
		}
	}

	n := value * math.Pow(1024, float64(idx))
	if n >= math.MaxInt64 {
		return 0, fmt.Errorf("byte size out of range: %q", s)
	}
	return int64(n), nil
}

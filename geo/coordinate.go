// Package geo converts spreadsheet coordinates and pixel-space polygons into
// geographic positions and estimates the ground area they cover.
package geo

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// coordinateReplacer folds the punctuation variants seen in spreadsheet
// exports onto ° ' " so the DMS splitter only deals with three symbols.
// "''" must stay ahead of "'" for the two-apostrophe seconds mark.
var coordinateReplacer = strings.NewReplacer(
	"''", `"`,
	"º", "°",
	"˚", "°",
	"′", "'",
	"’", "'",
	"‘", "'",
	"´", "'",
	"`", "'",
	"″", `"`,
	"“", `"`,
	"”", `"`,
	"ʺ", `"`,
	",", ".",
)

// ParseCoordinate converts a latitude or longitude written either as a
// decimal ("45.2671", "45,2671", "19.83E") or as degrees/minutes/seconds
// ("45°16'1.5\"N", "19 50 3 E") into signed decimal degrees. S and W are
// negative. Unparsable input yields 0.
func ParseCoordinate(raw string) float64 {
	s := strings.TrimSpace(coordinateReplacer.Replace(raw))
	if s == "" {
		return 0
	}

	s, southWest := stripCardinal(s)

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if !isFinite(v) {
			return 0
		}
		return applyCardinal(v, southWest)
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '°' || r == '\'' || r == '"'
	})
	if len(fields) == 0 || len(fields) > 3 {
		return 0
	}

	negative := false
	if strings.HasPrefix(fields[0], "-") {
		negative = true
		fields[0] = strings.TrimPrefix(fields[0], "-")
	}

	var parts [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || !isFinite(v) || v < 0 {
			return 0
		}
		parts[i] = v
	}

	value := parts[0] + parts[1]/60 + parts[2]/3600
	if negative {
		value = -value
	}
	return applyCardinal(value, southWest)
}

// applyCardinal makes v negative when the cell names S or W. A minus sign
// alone is kept as written.
func applyCardinal(v float64, southWest bool) float64 {
	if southWest {
		return -math.Abs(v)
	}
	return v
}

// stripCardinal removes a leading or trailing N/S/E/W and reports whether it
// was S or W
func stripCardinal(s string) (string, bool) {
	if s == "" {
		return s, false
	}
	southWest := false
	last := s[len(s)-1]
	switch unicode.ToUpper(rune(last)) {
	case 'N', 'E':
		s = s[:len(s)-1]
	case 'S', 'W':
		southWest = true
		s = s[:len(s)-1]
	default:
		first := s[0]
		switch unicode.ToUpper(rune(first)) {
		case 'N', 'E':
			s = s[1:]
		case 'S', 'W':
			southWest = true
			s = s[1:]
		}
	}
	return strings.TrimSpace(s), southWest
}

// ParseZoomLevel extracts the leading run of digits from a zoom cell such as
// "1300" or "1300 m". It returns nil when the cell has no leading digits.
func ParseZoomLevel(raw string) *int {
	s := strings.TrimSpace(raw)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	zoom, err := strconv.Atoi(s[:end])
	if err != nil {
		return nil
	}
	return &zoom
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

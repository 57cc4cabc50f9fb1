package core

// transform.go converts raw cell text into typed values.
//
// Transforms are named kinds rather than closures so a ColumnMapping stays
// comparable and serialisable. Every transform returns ok=false for input
// that carries no value; callers treat that as "field absent", never zero.

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TransformKind names the conversion applied to a column's raw value.
type TransformKind int

const (
	TransformIdentity TransformKind = iota
	TransformNumeric
	TransformGoogleVolumeRange
	TransformRegionCode
)

var transformNames = map[TransformKind]string{
	TransformIdentity:          "identity",
	TransformNumeric:           "numeric",
	TransformGoogleVolumeRange: "google_volume_range",
	TransformRegionCode:        "region_code",
}

func (k TransformKind) String() string {
	if n, ok := transformNames[k]; ok {
		return n
	}
	return fmt.Sprintf("transform(%d)", int(k))
}

func (k TransformKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *TransformKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for kind, name := range transformNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown transform %q", s)
}

// Apply converts raw according to the transform kind.
func (k TransformKind) Apply(raw string) (Scalar, bool) {
	switch k {
	case TransformNumeric:
		f, ok := ParseNumeric(raw)
		if !ok {
			return Scalar{}, false
		}
		return NumberValue(f), true
	case TransformGoogleVolumeRange:
		f, ok := ParseVolumeRange(raw)
		if !ok {
			return Scalar{}, false
		}
		return NumberValue(f), true
	case TransformRegionCode:
		s := strings.ToUpper(strings.TrimSpace(raw))
		if s == "" {
			return Scalar{}, false
		}
		return StringValue(s), true
	default:
		s := strings.TrimSpace(raw)
		if s == "" {
			return Scalar{}, false
		}
		return StringValue(s), true
	}
}

// numericRegex validates a cleaned numeric string.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumeric parses tool-formatted numbers such as "1,200", "$2.50",
// "45%" or "(3.5)". A leading quote added by injection sanitising is
// ignored since the result is a number.
func ParseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "'")
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = numericReplacer.Replace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var numericReplacer = strings.NewReplacer(
	",", "",
	"$", "",
	"\u20ac", "", // Euro
	"\u00a3", "", // Pound
	"%", "",
	" ", "",
	"\u00a0", "",
)

// ParseVolumeRange parses Keyword Planner volumes. Ranges like "1K - 10K"
// average their bounds after expanding K and M suffixes; a single value
// passes through.
func ParseVolumeRange(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "'")
	if s == "" {
		return 0, false
	}

	s = strings.ReplaceAll(s, "\u2013", "-") // en dash
	parts := strings.Split(s, "-")
	if len(parts) == 2 && strings.TrimSpace(parts[0]) != "" {
		low, ok := parseSuffixed(parts[0])
		if !ok {
			return 0, false
		}
		high, ok := parseSuffixed(parts[1])
		if !ok {
			return 0, false
		}
		return (low + high) / 2, true
	}
	return parseSuffixed(s)
}

// parseSuffixed parses "10K", "1.5M" or a plain number.
func parseSuffixed(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "k"):
		mult = 1_000
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
		mult = 1_000_000
		s = s[:len(s)-1]
	}
	f, ok := ParseNumeric(s)
	if !ok {
		return 0, false
	}
	return f * mult, true
}

// transformForField picks the transform manual mappings attach to a
// target field.
func transformForField(field string) TransformKind {
	switch field {
	case FieldSearchVolume:
		// Range parsing also accepts plain numbers.
		return TransformGoogleVolumeRange
	case FieldDifficulty, "cpc", "competitionIndex", "trafficPotential",
		"globalVolume", "cps", "bidLow", "bidHigh", "threeMonthChange", "yoyChange", "results":
		return TransformNumeric
	case FieldRegion:
		return TransformRegionCode
	}
	return TransformIdentity
}

// Package protek506 decodes the ASCII measurement frames of the Protek 506
// digital multimeter into structured readings.
//
// One frame corresponds to one measurement snapshot and looks like
//
//	D 012.3 V
//	R  OL  kΩ
//	L High
//
// The first byte selects the measurement function, the remainder carries a
// signed digit sequence or a sentinel token, followed by the units the meter
// had selected. The decoder is a pure function of the frame bytes.
package protek506

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrShortFrame  = errors.New("frame too short")
	ErrUnknownMode = errors.New("unknown mode indicator")
	ErrNoToken     = errors.New("no reading token in frame")
)

// Kind selects which variant of a Value is populated.
type Kind int

const (
	// Numeric is a plain digit sequence with an optional sign.
	Numeric Kind = iota
	// Overload is the out-of-range indication (OL, OPEN, SHORT).
	Overload
	// Logic is a logic-probe level (High, Low, ----).
	Logic
)

// OverloadKind distinguishes the overload variants of the meter.
type OverloadKind int

const (
	// OverloadGeneric is the OL token shown in all ranging modes.
	OverloadGeneric OverloadKind = iota
	// OverloadOpen is the OPEN token of the continuity/diode mode.
	OverloadOpen
	// OverloadShort is the SHORT token of the continuity/diode mode.
	OverloadShort
)

// Level is a logic-probe level.
type Level int

const (
	High Level = iota
	Low
	// Indeterminate is transmitted as "----" when the probe floats.
	Indeterminate
)

// Value is the reading field of a frame. Exactly one variant is in effect,
// selected by Kind.
type Value struct {
	Kind      Kind
	Magnitude string // digit sequence as transmitted, leading zeros kept
	Negative  bool
	Overload  OverloadKind
	Level     Level
}

// Reading is one decoded measurement instant.
type Reading struct {
	TimeStamp time.Time
	Mode      string
	Value     Value
	Units     string
}

// modeInfo maps a mode letter to its short code and implied default units.
type modeInfo struct {
	code  string
	units string
}

// mode letters as observed on the wire
var modeTable = map[byte]modeInfo{
	'D': {"VDC", "V"},
	'A': {"VAC", "V"},
	'R': {"RES", "Ω"},
	'F': {"FRQ", "Hz"},
	'C': {"CAP", "F"},
	'I': {"IND", "H"},
	'T': {"TMP", "°C"},
	'L': {"DIO", ""},
	'B': {"DIO", ""},
}

// digit sequence with optional sign and range multiplier, leading zeros kept
var numericPattern = regexp.MustCompile(`^([+-]?)([0-9]*\.?[0-9]+[kmuz]?)`)

// String renders the value the way the meter displays it. Numeric values keep
// their transmitted digit count.
func (v Value) String() string {
	switch v.Kind {
	case Overload:
		switch v.Overload {
		case OverloadOpen:
			return "OPEN"
		case OverloadShort:
			return "SHORT"
		default:
			return "OL"
		}
	case Logic:
		switch v.Level {
		case High:
			return "High"
		case Low:
			return "Low"
		default:
			return "----"
		}
	default:
		if v.Negative {
			return "-" + v.Magnitude
		}
		return v.Magnitude
	}
}

// Decode converts one raw frame into a Reading. The frame terminator and any
// surrounding whitespace are stripped first. The TimeStamp field is left zero,
// it is assigned by the caller when the frame is accepted.
//
// Sentinel tokens take precedence over numeric parsing, so an OL shown on a
// resistance range never ends up as a magnitude of zero digits.
func Decode(frame []byte) (Reading, error) {
	var r Reading

	payload := strings.TrimSpace(strings.Trim(string(frame), "\r\n"))
	if len(payload) < 2 {
		return r, ErrShortFrame
	}

	m, ok := modeTable[payload[0]]
	if !ok {
		return r, ErrUnknownMode
	}
	r.Mode = m.code

	rest := strings.TrimSpace(payload[1:])

	value, units, err := splitReading(rest)
	if err != nil {
		return r, err
	}
	r.Value = value

	switch {
	case value.Kind == Logic:
		// logic levels never carry units
		r.Units = ""
	case units != "":
		r.Units = units
	default:
		r.Units = m.units
	}

	return r, nil
}

// splitReading separates the reading token from the trailing units text.
func splitReading(s string) (Value, string, error) {
	if v, rest, ok := sentinel(s); ok {
		return v, cleanUnits(rest), nil
	}

	m := numericPattern.FindStringSubmatch(s)
	if m == nil {
		return Value{}, "", ErrNoToken
	}

	v := Value{
		Kind:      Numeric,
		Magnitude: m[2],
		Negative:  m[1] == "-",
	}
	return v, cleanUnits(s[len(m[0]):]), nil
}

// sentinel recognizes the non-numeric tokens of the meter. The overload token
// appears with a leading sign or decimal point on some ranges (-OL, .OL).
func sentinel(s string) (Value, string, bool) {
	for _, t := range []string{"OL", "-OL", ".OL", "+OL"} {
		if rest, ok := cutToken(s, t); ok {
			return Value{Kind: Overload, Overload: OverloadGeneric}, rest, true
		}
	}
	if rest, ok := cutToken(s, "OPEN"); ok {
		return Value{Kind: Overload, Overload: OverloadOpen}, rest, true
	}
	if rest, ok := cutToken(s, "SHORT"); ok {
		return Value{Kind: Overload, Overload: OverloadShort}, rest, true
	}
	if rest, ok := cutToken(s, "High"); ok {
		return Value{Kind: Logic, Level: High}, rest, true
	}
	if rest, ok := cutToken(s, "Low"); ok {
		return Value{Kind: Logic, Level: Low}, rest, true
	}
	if rest, ok := cutToken(s, "----"); ok {
		return Value{Kind: Logic, Level: Indeterminate}, rest, true
	}
	return Value{}, "", false
}

// cutToken matches t at the start of s, ignoring case, and returns the rest.
func cutToken(s, t string) (string, bool) {
	if len(s) < len(t) || !strings.EqualFold(s[:len(t)], t) {
		return "", false
	}
	return s[len(t):], true
}

// cleanUnits trims the units text and repairs the degree symbol the meter
// mangles to "^C" on the temperature ranges.
func cleanUnits(s string) string {
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, "^C", "°C")
}

package protek506

import (
	"testing"

	"github.com/matryer/is"
)

func TestDecodeNumeric(t *testing.T) {
	is := is.New(t)

	r, err := Decode([]byte("D 012.3 V\r"))
	is.NoErr(err)
	is.Equal(r.Mode, "VDC")
	is.Equal(r.Value.Kind, Numeric)
	is.Equal(r.Value.Magnitude, "012.3")
	is.Equal(r.Value.Negative, false)
	is.Equal(r.Units, "V")
	is.True(r.TimeStamp.IsZero())
}

func TestDecodeKeepsLeadingZeros(t *testing.T) {
	is := is.New(t)

	r, err := Decode([]byte("D 007.50 V"))
	is.NoErr(err)
	is.Equal(r.Value.Magnitude, "007.50")
	is.Equal(r.Value.String(), "007.50")
}

func TestDecodeNegativeSign(t *testing.T) {
	is := is.New(t)

	r, err := Decode([]byte("D -00.123 V"))
	is.NoErr(err)
	is.Equal(r.Value.Negative, true)
	is.Equal(r.Value.Magnitude, "00.123")
	is.Equal(r.Value.String(), "-00.123")
}

func TestDecodeOverloadVariants(t *testing.T) {
	is := is.New(t)

	for _, frame := range []string{"R OL MΩ", "R -OL MΩ", "R .OL MΩ"} {
		r, err := Decode([]byte(frame))
		is.NoErr(err)
		is.Equal(r.Value.Kind, Overload)
		is.Equal(r.Value.Overload, OverloadGeneric)
		is.Equal(r.Value.String(), "OL")
		is.Equal(r.Units, "MΩ")
	}
}

func TestDecodeOpenAndShort(t *testing.T) {
	is := is.New(t)

	r, err := Decode([]byte("L OPEN"))
	is.NoErr(err)
	is.Equal(r.Mode, "DIO")
	is.Equal(r.Value.Overload, OverloadOpen)
	is.Equal(r.Value.String(), "OPEN")
	is.Equal(r.Units, "")

	r, err = Decode([]byte("L SHORT"))
	is.NoErr(err)
	is.Equal(r.Value.Overload, OverloadShort)
	is.Equal(r.Value.String(), "SHORT")
}

func TestDecodeLogicLevels(t *testing.T) {
	is := is.New(t)

	cases := []struct {
		frame string
		level Level
		text  string
	}{
		{"L High", High, "High"},
		{"L Low", Low, "Low"},
		{"L ----", Indeterminate, "----"},
	}

	for _, c := range cases {
		r, err := Decode([]byte(c.frame))
		is.NoErr(err)
		is.Equal(r.Value.Kind, Logic)
		is.Equal(r.Value.Level, c.level)
		is.Equal(r.Value.String(), c.text)
		// logic levels never carry units
		is.Equal(r.Units, "")
	}
}

func TestDecodeUnknownMode(t *testing.T) {
	is := is.New(t)

	_, err := Decode([]byte("X 123.4 V"))
	is.Equal(err, ErrUnknownMode)
}

func TestDecodeTruncatedFrame(t *testing.T) {
	is := is.New(t)

	for _, frame := range []string{"", "D", "\r"} {
		_, err := Decode([]byte(frame))
		is.Equal(err, ErrShortFrame)
	}
}

func TestDecodeNoReadingToken(t *testing.T) {
	is := is.New(t)

	_, err := Decode([]byte("D ???"))
	is.Equal(err, ErrNoToken)
}

func TestDecodeUnitsFromFrameOverrideDefault(t *testing.T) {
	is := is.New(t)

	r, err := Decode([]byte("D 123.4 mV"))
	is.NoErr(err)
	is.Equal(r.Units, "mV")

	// no units in the frame, the mode implies them
	r, err = Decode([]byte("F 0123.4"))
	is.NoErr(err)
	is.Equal(r.Mode, "FRQ")
	is.Equal(r.Units, "Hz")
}

func TestDecodeRepairsDegreeSymbol(t *testing.T) {
	is := is.New(t)

	r, err := Decode([]byte("T 0023 ^C"))
	is.NoErr(err)
	is.Equal(r.Mode, "TMP")
	is.Equal(r.Units, "°C")
}

func TestDecodeIsDeterministic(t *testing.T) {
	is := is.New(t)

	frame := []byte("A 230.1 V")
	a, err := Decode(frame)
	is.NoErr(err)
	b, err := Decode(frame)
	is.NoErr(err)
	is.Equal(a, b)
}

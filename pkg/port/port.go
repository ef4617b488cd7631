// Package port holds the access to the physical serial port of the meter.
//
// The Protek 506 transmits at 1200 baud, 7 data bits, no parity, 2 stop bits.
// It sends one frame per trigger byte, terminated by a carriage return.
package port

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/womat/debug"
	"go.bug.st/serial"
)

const (
	// Baud is the fixed transmission rate of the meter.
	Baud = 1200

	// trigger is written to the meter to request one frame.
	trigger = '\n'
	// terminator closes every frame the meter sends.
	terminator = '\r'

	// frames are short, a full one is well under this
	maxFrame = 64
)

// ErrReadTimeout reports that no complete frame arrived within the
// configured read timeout.
var ErrReadTimeout = errors.New("read timeout")

// Line is an open serial connection to the meter.
type Line struct {
	port    serial.Port
	name    string
	timeout time.Duration
}

// Open opens the named serial device with the fixed transport configuration
// of the meter. The timeout bounds every ReadFrame call.
func Open(name string, timeout time.Duration) (*Line, error) {
	mode := &serial.Mode{
		BaudRate: Baud,
		DataBits: 7,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}

	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}

	if err = p.SetReadTimeout(timeout); err != nil {
		_ = p.Close()
		return nil, err
	}

	debug.DebugLog.Printf("opened %s (%d baud 7N2)", name, Baud)
	return &Line{port: p, name: name, timeout: timeout}, nil
}

// Name returns the device name the line was opened with.
func (l *Line) Name() string {
	return l.name
}

// ReadFrame triggers the meter and reads one frame. The returned bytes do not
// include the terminator. A transmission that does not complete within the
// read timeout is reported as ErrReadTimeout.
func (l *Line) ReadFrame() ([]byte, error) {
	if _, err := l.port.Write([]byte{trigger}); err != nil {
		return nil, err
	}

	frame := make([]byte, 0, maxFrame)
	b := make([]byte, 1)
	deadline := time.Now().Add(l.timeout)

	for {
		n, err := l.port.Read(b)
		if err != nil {
			return nil, err
		}

		// n == 0 is how the serial layer reports a read timeout
		if n == 0 || time.Now().After(deadline) {
			return nil, ErrReadTimeout
		}

		if b[0] == terminator {
			return frame, nil
		}

		frame = append(frame, b[0])
		if len(frame) > maxFrame {
			return nil, ErrReadTimeout
		}
	}
}

// Close releases the serial port.
func (l *Line) Close() error {
	debug.DebugLog.Printf("closing %s", l.name)
	return l.port.Close()
}

// Candidates enumerates the serial devices of the host that could carry the
// meter, in probing order. USB adapters come first, built-in ports after,
// each group sorted by name.
func Candidates() ([]string, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}

	var adapters, builtin []string
	for _, n := range names {
		lower := strings.ToLower(n)
		switch {
		case strings.Contains(lower, "usb") || strings.Contains(lower, "acm"):
			adapters = append(adapters, n)
		case strings.Contains(lower, "serial") || strings.HasPrefix(lower, "com") || strings.Contains(lower, "tty"):
			builtin = append(builtin, n)
		}
	}

	sort.Strings(adapters)
	sort.Strings(builtin)

	return append(adapters, builtin...), nil
}

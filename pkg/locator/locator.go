// Package locator finds the serial port the meter is connected to.
//
// Each candidate device is opened with the meter's transport configuration
// and probed with a single bounded read. A candidate is accepted as soon as
// one of its frames decodes, whatever the reading turns out to be.
package locator

import (
	"errors"
	"fmt"

	"github.com/womat/debug"

	"p506log/pkg/protek506"
)

// ErrNotFound reports that every candidate was probed without success.
// A human has to act on this, there is no point in retrying internally.
var ErrNotFound = errors.New("no responding serial port found")

// Port is a probed transport handle.
type Port interface {
	// ReadFrame reads one frame within the transport's read timeout.
	ReadFrame() ([]byte, error)
	// Name returns the device name of the port.
	Name() string
	// Close releases the port.
	Close() error
}

// OpenFunc opens a candidate device by name.
type OpenFunc func(name string) (Port, error)

// Locate probes the candidates in the supplied order and returns the first
// one that emits a decodable frame, with its handle left open. Handles of
// rejected candidates are closed before the next one is tried.
func Locate(candidates []string, open OpenFunc) (Port, error) {
	for _, name := range candidates {
		p, err := open(name)
		if err != nil {
			debug.DebugLog.Printf("probe %s: %v", name, err)
			continue
		}

		if err = probe(p); err != nil {
			debug.DebugLog.Printf("probe %s: %v", name, err)
			_ = p.Close()
			continue
		}

		debug.InfoLog.Printf("meter found on %s", p.Name())
		return p, nil
	}

	return nil, ErrNotFound
}

// Override opens the manually chosen device, bypassing enumeration, but runs
// the same one-shot probe so a bad manual choice fails fast.
func Override(name string, open OpenFunc) (Port, error) {
	p, err := open(name)
	if err != nil {
		return nil, fmt.Errorf("port %s: %w", name, err)
	}

	if err = probe(p); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("port %s: %w", name, err)
	}

	debug.InfoLog.Printf("using port %s", p.Name())
	return p, nil
}

func probe(p Port) error {
	f, err := p.ReadFrame()
	if err != nil {
		return err
	}

	_, err = protek506.Decode(f)
	return err
}

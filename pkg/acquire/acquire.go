// Package acquire drives the polling loop that turns the open serial line
// into a stream of readings.
//
// The loop runs one read/decode/emit cycle per interval. Frames that time
// out or fail to decode are transient misses: the cycle is skipped and the
// loop carries on, because the meter may legitimately idle between
// transmissions. Only a failure of the handle itself faults the session.
package acquire

import (
	"errors"
	"sync"
	"time"

	"github.com/womat/debug"

	"p506log/pkg/port"
	"p506log/pkg/protek506"
)

// State is the lifecycle state of the loop.
type State int

const (
	Idle State = iota
	Probing
	Running
	Stopped
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Probing:
		return "probing"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Faulted:
		return "faulted"
	}
	return "unknown"
}

// Source is the open transport the loop polls. It is owned exclusively by
// the loop from Start until the loop ends, on whatever path.
type Source interface {
	ReadFrame() ([]byte, error)
	Close() error
}

// Sink consumes accepted readings.
type Sink interface {
	Emit(protek506.Reading)
}

// Loop is the acquisition state machine.
type Loop struct {
	interval time.Duration
	sinks    []Sink

	src Source

	quit     chan struct{}
	done     chan struct{}
	fault    chan error
	stopOnce sync.Once

	mu     sync.Mutex
	state  State
	misses uint64
	frames uint64
}

// New creates a loop polling at the given interval. The interval must be
// greater than zero.
func New(interval time.Duration, sinks ...Sink) *Loop {
	return &Loop{
		interval: interval,
		sinks:    sinks,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		fault:    make(chan error, 1),
	}
}

// Start locates the meter and launches the polling loop. On a locate
// failure the loop ends up Faulted and the error is returned, nothing is
// left open.
func (l *Loop) Start(locate func() (Source, error)) error {
	l.setState(Probing)

	src, err := locate()
	if err != nil {
		l.setState(Faulted)
		close(l.done)
		return err
	}

	l.src = src
	l.setState(Running)
	go l.run()
	return nil
}

// Stop requests a shutdown and blocks until the handle is released. The stop
// is observed at both suspension points of a cycle, so no read is left
// holding the port.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
	<-l.done
}

// Fault delivers the session-fatal error, if the loop ever hits one.
func (l *Loop) Fault() <-chan error {
	return l.fault
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Counters returns the number of accepted frames and transient misses.
func (l *Loop) Counters() (frames, misses uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames, l.misses
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Loop) run() {
	defer close(l.done)
	defer func() { _ = l.src.Close() }()

	for {
		select {
		case <-l.quit:
			l.setState(Stopped)
			return
		default:
		}

		start := time.Now()

		if fatal := l.cycle(); fatal != nil {
			l.setState(Faulted)
			debug.ErrorLog.Printf("connection to the meter lost: %v", fatal)
			l.fault <- fatal
			return
		}

		// sleep out the rest of the interval; a slow cycle starts the
		// next one immediately instead of compounding
		wait := l.interval - time.Since(start)
		if wait <= 0 {
			continue
		}

		select {
		case <-l.quit:
			l.setState(Stopped)
			return
		case <-time.After(wait):
		}
	}
}

// cycle performs one read/decode/emit pass. Its return value is nil unless
// the transport handle itself failed.
func (l *Loop) cycle() error {
	f, err := l.src.ReadFrame()
	if errors.Is(err, port.ErrReadTimeout) {
		l.miss(err)
		return nil
	}
	if err != nil {
		return err
	}

	r, err := protek506.Decode(f)
	if err != nil {
		l.miss(err)
		return nil
	}

	// capture instant, not cycle start
	r.TimeStamp = time.Now()

	l.mu.Lock()
	l.frames++
	l.mu.Unlock()

	for _, s := range l.sinks {
		s.Emit(r)
	}
	return nil
}

func (l *Loop) miss(err error) {
	l.mu.Lock()
	l.misses++
	n := l.misses
	l.mu.Unlock()

	debug.TraceLog.Printf("cycle skipped (%d misses): %v", n, err)
}

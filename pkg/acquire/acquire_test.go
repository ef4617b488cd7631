package acquire

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/womat/debug"

	"p506log/pkg/csvlog"
	"p506log/pkg/locator"
	"p506log/pkg/port"
	"p506log/pkg/protek506"
)

func TestMain(m *testing.M) {
	debug.SetDebug(os.Stderr, 0)
	os.Exit(m.Run())
}

type fakeSource struct {
	mu     sync.Mutex
	name   string
	frame  []byte
	err    error
	reads  int
	closed bool
}

func (s *fakeSource) ReadFrame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

type captureSink struct {
	ch chan protek506.Reading
}

func (c *captureSink) Emit(r protek506.Reading) {
	select {
	case c.ch <- r:
	default:
	}
}

// eventually polls cond for up to a second.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestLoopEmitsTimestampedReadings(t *testing.T) {
	is := is.New(t)

	src := &fakeSource{frame: []byte("D 012.3 V")}
	sink := &captureSink{ch: make(chan protek506.Reading, 1)}
	l := New(5*time.Millisecond, sink)

	is.NoErr(l.Start(func() (Source, error) { return src, nil }))
	is.Equal(l.State(), Running)

	r := <-sink.ch
	is.Equal(r.Mode, "VDC")
	is.Equal(r.Value.Magnitude, "012.3")
	is.True(!r.TimeStamp.IsZero())

	l.Stop()
	is.Equal(l.State(), Stopped)
	is.True(src.isClosed())
}

func TestStopReleasesHandleBeforeNextRead(t *testing.T) {
	is := is.New(t)

	src := &fakeSource{frame: []byte("D 012.3 V")}
	sink := &captureSink{ch: make(chan protek506.Reading, 1)}
	// an interval long enough that the loop is parked between cycles
	l := New(time.Hour, sink)

	is.NoErr(l.Start(func() (Source, error) { return src, nil }))

	eventually(t, func() bool { return src.readCount() == 1 })

	l.Stop()
	is.True(src.isClosed())
	is.Equal(src.readCount(), 1)
	is.Equal(l.State(), Stopped)
}

func TestTransientMissesKeepTheLoopRunning(t *testing.T) {
	is := is.New(t)

	src := &fakeSource{err: port.ErrReadTimeout}
	l := New(time.Millisecond)

	is.NoErr(l.Start(func() (Source, error) { return src, nil }))

	eventually(t, func() bool {
		_, misses := l.Counters()
		return misses >= 3
	})
	is.Equal(l.State(), Running)

	l.Stop()
	frames, _ := l.Counters()
	is.Equal(frames, uint64(0))
}

func TestUndecodableFramesAreMisses(t *testing.T) {
	is := is.New(t)

	src := &fakeSource{frame: []byte("@!")}
	l := New(time.Millisecond)

	is.NoErr(l.Start(func() (Source, error) { return src, nil }))

	eventually(t, func() bool {
		_, misses := l.Counters()
		return misses >= 2
	})
	is.Equal(l.State(), Running)

	l.Stop()
}

func TestHandleFailureFaultsTheSession(t *testing.T) {
	is := is.New(t)

	src := &fakeSource{err: errors.New("device disconnected")}
	l := New(time.Millisecond)

	is.NoErr(l.Start(func() (Source, error) { return src, nil }))

	err := <-l.Fault()
	is.True(err != nil)

	eventually(t, func() bool { return src.isClosed() })
	is.Equal(l.State(), Faulted)
}

func TestLocateFailureFaultsBeforeRunning(t *testing.T) {
	is := is.New(t)

	l := New(time.Millisecond)
	err := l.Start(func() (Source, error) { return nil, locator.ErrNotFound })

	is.Equal(err, locator.ErrNotFound)
	is.Equal(l.State(), Faulted)

	// nothing was opened, Stop must not block
	l.Stop()
}

func TestEndToEndSelectsPortAndLogsRow(t *testing.T) {
	is := is.New(t)

	a := &fakeSource{name: "A", err: port.ErrReadTimeout}
	b := &fakeSource{name: "B", frame: []byte("D 012.3 V")}
	open := func(name string) (locator.Port, error) {
		if name == "A" {
			return a, nil
		}
		return b, nil
	}

	path := filepath.Join(t.TempDir(), "log.txt")
	w, err := csvlog.Open(path)
	is.NoErr(err)

	l := New(5*time.Millisecond, w)
	err = l.Start(func() (Source, error) {
		p, err := locator.Locate([]string{"A", "B"}, open)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	is.NoErr(err)

	// one probe read plus at least one acquisition cycle
	eventually(t, func() bool { return b.readCount() >= 2 })

	l.Stop()
	is.True(a.isClosed())
	is.True(b.isClosed())
	is.NoErr(w.Close())

	raw, err := os.ReadFile(path)
	is.NoErr(err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	is.True(len(lines) >= 2)
	is.Equal(lines[0], "date,time,mode,reading,units")
	is.True(strings.HasSuffix(lines[1], ",VDC,012.3,V"))
}

// Package csvlog appends readings to a delimited log file.
//
// Columns are date, time, mode, reading, units. The header row is written
// once, only when the target file is new or empty, so repeated runs against
// the same file keep appending rows.
package csvlog

import (
	"encoding/csv"
	"os"

	"github.com/womat/debug"

	"p506log/pkg/protek506"
)

// DefaultFile is the log target when the operator does not choose one.
const DefaultFile = "Protek-506-log.txt"

const (
	dateFormat = "2006-01-02"
	// ms precision, matching the console view
	timeFormat = "15:04:05.000"
)

var header = []string{"date", "time", "mode", "reading", "units"}

// Writer is the open log target.
type Writer struct {
	file *os.File
	csv  *csv.Writer
}

// Open opens the target in append mode and writes the header row if the file
// is new or empty.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return nil, err
	}

	w := &Writer{file: f, csv: csv.NewWriter(f)}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if st.Size() == 0 {
		if err = w.write(header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return w, nil
}

// Append writes one reading as a row. Each row is flushed so a later crash
// cannot lose accepted readings.
func (w *Writer) Append(r protek506.Reading) error {
	return w.write([]string{
		r.TimeStamp.Format(dateFormat),
		r.TimeStamp.Format(timeFormat),
		r.Mode,
		r.Value.String(),
		r.Units,
	})
}

// Emit lets the Writer act as an acquisition sink. Write failures are logged
// and absorbed, they never interrupt the measurement stream.
func (w *Writer) Emit(r protek506.Reading) {
	if err := w.Append(r); err != nil {
		debug.ErrorLog.Printf("log write: %v", err)
	}
}

// Close flushes pending rows and closes the file.
func (w *Writer) Close() error {
	w.csv.Flush()
	return w.file.Close()
}

func (w *Writer) write(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

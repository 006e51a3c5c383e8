// Package sink provides the mutex-guarded, append-only output writers shared
// by the harvest workers: a numbered run log, a CSV data file, and a CSV
// parse-error file. Each sink has its own lock, so appends from concurrent
// workers serialize within a sink but carry no cross-sink ordering.
package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogSink writes sequentially numbered text lines to a console stream or a
// file. The sequence number increments under the same lock that guards the
// write, so numbering is gapless within a run.
type LogSink struct {
	mu       sync.Mutex
	w        io.Writer
	seq      int
	disabled bool
}

// NewLogSink creates a log sink writing to w.
func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{w: w}
}

// NewLogFile creates a log sink writing to a file, truncating any previous
// contents.
func NewLogFile(path string) (*LogSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	return &LogSink{w: f}, nil
}

// Message appends one numbered line. It is a no-op after Disable.
func (s *LogSink) Message(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return
	}
	s.seq++
	fmt.Fprintf(s.w, "[%d]:\t%s\n", s.seq, text)
}

// Disable makes all subsequent Message calls no-ops (quiet mode).
func (s *LogSink) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = true
}

// Sequence returns the number of messages written so far.
func (s *LogSink) Sequence() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// DataSink appends record rows to a CSV file. Each Append writes the column
// header followed by the rows as a single locked operation, so a segment's
// block is either fully present or absent.
type DataSink struct {
	mu     sync.Mutex
	path   string
	header []string
}

// NewDataSink creates a data sink for path. The file is created if missing
// and existing contents are preserved.
func NewDataSink(path string, header []string) (*DataSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	f.Close()
	return &DataSink{path: path, header: header}, nil
}

// Append writes the header and rows to the file in one exclusive section.
func (s *DataSink) Append(rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(s.header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}

// ErrorSink appends header-less CSV rows describing parse failures.
type ErrorSink struct {
	mu   sync.Mutex
	path string
}

// NewErrorSink creates an error sink for path, truncating previous contents.
func NewErrorSink(path string) (*ErrorSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create error file: %w", err)
	}
	f.Close()
	return &ErrorSink{path: path}, nil
}

// Append writes the rows to the file. Appending no rows is a no-op.
func (s *ErrorSink) Append(rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open error file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Set bundles the three process-scoped sinks.
type Set struct {
	Log    *LogSink
	Data   *DataSink
	Errors *ErrorSink
}

// NewSet bootstraps the three sinks. logPath selects file logging; an empty
// logPath logs to stdout.
func NewSet(dataPath, errorPath, logPath string, header []string) (*Set, error) {
	var logSink *LogSink
	if logPath != "" {
		var err error
		logSink, err = NewLogFile(logPath)
		if err != nil {
			return nil, err
		}
	} else {
		logSink = NewLogSink(os.Stdout)
	}

	dataSink, err := NewDataSink(dataPath, header)
	if err != nil {
		return nil, err
	}

	errorSink, err := NewErrorSink(errorPath)
	if err != nil {
		return nil, err
	}

	return &Set{Log: logSink, Data: dataSink, Errors: errorSink}, nil
}

// Package bitacora records every accepted event: one text line per event in
// an append-only file, optionally mirrored into SQLite.
package bitacora

import (
	"errors"
	"fmt"
	"os"

	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
	"github.com/gyaneshwarpardhi/atmsvr/internal/telemetry"
)

const (
	// Delimiter separates fields of a log line.
	Delimiter  = " | "
	timeLayout = "2006-01-02 15:04:05"
)

// ErrWrite marks a failure to persist an accepted event.
var ErrWrite = errors.New("bitácora write failed")

// Recorder persists one accepted event.
type Recorder interface {
	Record(ev event.Event) error
}

// FormatLine renders ev as a newline-terminated log line:
// serial, timestamp, origin, numeric type, type name.
func FormatLine(ev event.Event) string {
	return fmt.Sprintf("%d%s%s%s%d%s%d%s%s\n",
		ev.Serial, Delimiter,
		ev.Time().Format(timeLayout), Delimiter,
		ev.Origin, Delimiter,
		uint8(ev.Type), Delimiter,
		ev.Type.String(),
	)
}

// Log is the append-only bitácora file.
type Log struct {
	f *os.File
}

// Open opens path for appending, creating it if needed.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrWrite, path, err)
	}
	return &Log{f: f}, nil
}

// Record appends one line and flushes it to disk. The write holds the
// process-wide output lock shared with console diagnostics.
func (l *Log) Record(ev event.Event) error {
	line := FormatLine(ev)
	telemetry.OutputLock.Lock()
	defer telemetry.OutputLock.Unlock()
	if _, err := l.f.WriteString(line); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %w", ErrWrite, err)
	}
	return nil
}

// Path returns the file name.
func (l *Log) Path() string {
	return l.f.Name()
}

// Close closes the underlying file. Records after Close fail.
func (l *Log) Close() error {
	return l.f.Close()
}

// Multi records into every recorder in order, stopping at the first error.
type Multi []Recorder

// Record passes ev to each recorder in turn.
func (m Multi) Record(ev event.Event) error {
	for _, r := range m {
		if err := r.Record(ev); err != nil {
			return err
		}
	}
	return nil
}

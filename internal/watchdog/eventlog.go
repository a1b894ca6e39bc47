package watchdog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"varg.is/gatewall/internal/clock"
)

// EventLog is the watchdog's persistent, append-only record. One line
// per event: "[<RFC3339>] <message>". The file is opened in append mode
// so external readers never race the writer. Write errors propagate to
// the caller; the watchdog treats them as fatal since the log is its
// only durable trace.
type EventLog struct {
	mu  sync.Mutex
	w   io.Writer
	f   *os.File
	clk clock.Clock
}

// OpenEventLog opens (creating if needed) the log file at path.
func OpenEventLog(path string, clk clock.Clock) (*EventLog, error) {
	if clk == nil {
		clk = &clock.RealClock{}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	return &EventLog{w: f, f: f, clk: clk}, nil
}

// NewEventLog writes events to an arbitrary writer (for tests).
func NewEventLog(w io.Writer, clk clock.Clock) *EventLog {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	return &EventLog{w: w, clk: clk}
}

// Printf appends one formatted event line.
func (l *EventLog) Printf(format string, args ...any) error {
	line := fmt.Sprintf("[%s] %s\n", l.clk.Now().Format(time.RFC3339), fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := io.WriteString(l.w, line)
	return err
}

// Close closes the underlying file, if any.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		return l.f.Close()
	}
	return nil
}

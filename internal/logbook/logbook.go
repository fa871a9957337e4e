// Package logbook keeps the desk's journey log: one line per session event
// or order transition, tailed by the dashboard's LOG panel.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// orderTag prefixes the order number in entries that concern one order.
const orderTag = "#"

// Entry is one journey line. Order is empty for session-wide events.
type Entry struct {
	Time    time.Time
	Level   Level
	Order   string
	Message string
}

// String renders the entry as it is stored on disk.
func (e Entry) String() string {
	subject := ""
	if e.Order != "" {
		subject = orderTag + e.Order + " "
	}
	return fmt.Sprintf("%s %-5s %s%s",
		e.Time.UTC().Format(time.RFC3339),
		string(e.Level),
		subject,
		flatten(e.Message),
	)
}

// Logbook appends entries to a plain text file.
type Logbook struct {
	path  string
	clock func() time.Time
	mu    sync.Mutex
}

// Option customizes a Logbook.
type Option func(*Logbook)

// WithClock sets the time source used to stamp entries.
func WithClock(clock func() time.Time) Option {
	return func(l *Logbook) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New creates a logbook that writes to the provided path.
func New(path string, opts ...Option) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	l := &Logbook{path: path, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Write stamps e (when it has no time) and appends it.
func (l *Logbook) Write(e Entry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = l.clock()
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(e.String() + "\n")
}

// Info appends a session-wide informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Write(Entry{Level: LevelInfo, Message: fmt.Sprintf(format, args...)})
}

// Warn appends a session-wide warning.
func (l *Logbook) Warn(format string, args ...any) {
	l.Write(Entry{Level: LevelWarn, Message: fmt.Sprintf(format, args...)})
}

// Error appends a session-wide error.
func (l *Logbook) Error(format string, args ...any) {
	l.Write(Entry{Level: LevelError, Message: fmt.Sprintf(format, args...)})
}

// OrderInfo records a transition of one order's retry control.
func (l *Logbook) OrderInfo(orderNumber, format string, args ...any) {
	l.Write(Entry{Level: LevelInfo, Order: orderNumber, Message: fmt.Sprintf(format, args...)})
}

// OrderWarn records a failed attempt for one order.
func (l *Logbook) OrderWarn(orderNumber, format string, args ...any) {
	l.Write(Entry{Level: LevelWarn, Order: orderNumber, Message: fmt.Sprintf(format, args...)})
}

// Tail returns up to maxLines of the most recent entries and the total
// number of entries in the file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	lines := l.readLines(nil)
	total := len(lines)
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// OrderHistory returns up to maxLines of the most recent entries recorded
// for orderNumber, oldest first.
func (l *Logbook) OrderHistory(orderNumber string, maxLines int) []string {
	if l == nil || maxLines <= 0 || orderNumber == "" {
		return nil
	}
	tag := orderTag + orderNumber
	lines := l.readLines(func(line string) bool {
		fields := strings.Fields(line)
		return len(fields) >= 3 && fields[2] == tag
	})
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}

func (l *Logbook) readLines(keep func(string) bool) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if keep == nil || keep(line) {
			lines = append(lines, line)
		}
	}
	return lines
}

// flatten keeps each entry on a single line.
func flatten(message string) string {
	return strings.Join(strings.Fields(message), " ")
}

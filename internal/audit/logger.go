// Package audit writes an append-only JSONL trail of control actions:
// who asked for what, against which target, how it ended and how long it
// took. Rotation is delegated to lumberjack so the log survives long
// unattended capture nights without eating the disk.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/camera-control/ccc/internal/auth"
)

// Entry is a single audit record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Outcome   string    `json:"outcome"`
	LatencyMs int64     `json:"latencyMs"`
}

// Logger appends audit entries to a rotating JSONL file.
type Logger struct {
	mu   sync.Mutex
	out  io.WriteCloser
	path string
}

// NewLogger creates an audit logger writing under logDir.
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(logDir, "audit.jsonl")
	return &Logger{
		path: path,
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		},
	}, nil
}

// LogAction records one control action. The user is taken from the request
// context's verified claims when present. Write failures are reported to
// stderr rather than propagated: an audit hiccup must not fail the action
// it describes.
func (l *Logger) LogAction(ctx context.Context, action, target, outcome string, latency time.Duration) {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		User:      auth.Subject(ctx),
		Action:    action,
		Target:    target,
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: marshal entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "audit: write entry: %v\n", err)
	}
}

// Path returns the audit log file path.
func (l *Logger) Path() string {
	return l.path
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

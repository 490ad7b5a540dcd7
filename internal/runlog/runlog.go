// Package runlog appends a human-readable trace of each pipeline step
// to a flat file for post-hoc debugging.
package runlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Log is an append-only timestamped trace file. Writes are flushed
// per line. Logging is best-effort: a write failure is reported to
// the process log but never fails the pipeline.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (or creates) the run log file for appending
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	return &Log{file: f}, nil
}

// Printf appends one timestamped line
func (l *Log) Printf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%s %s\n", time.Now().Format(time.RFC3339), fmt.Sprintf(format, args...))
	if _, err := l.file.WriteString(line); err != nil {
		logrus.Errorf("Failed to write run log entry: %v", err)
		return
	}
	if err := l.file.Sync(); err != nil {
		logrus.Errorf("Failed to sync run log: %v", err)
	}
}

// Close closes the run log file
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

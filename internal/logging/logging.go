// Package logging builds the process logger and keeps a bounded in-memory
// tail of recent lines for the /logs endpoint.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ringSize is how many recent log lines the buffer retains.
const ringSize = 1000

// Ring is an io.Writer that keeps the last ringSize lines.
type Ring struct {
	mu    sync.Mutex
	lines []string
}

// NewRing returns an empty ring buffer.
func NewRing() *Ring {
	return &Ring{lines: make([]string, 0, ringSize)}
}

func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, strings.TrimRight(string(p), "\n"))
	if len(r.lines) > ringSize {
		r.lines = r.lines[len(r.lines)-ringSize:]
	}
	return len(p), nil
}

// Tail returns a copy of the retained lines, oldest first.
func (r *Ring) Tail() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// New builds the root logger at the given level, writing JSON lines to
// stdout and the ring. Unknown levels fall back to info.
func New(level string, ring *Ring) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var w io.Writer = os.Stdout
	if ring != nil {
		w = io.MultiWriter(os.Stdout, ring)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

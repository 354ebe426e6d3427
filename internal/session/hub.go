// Package session runs one event loop per connected client. All engine
// transitions for a client happen on that loop, so gesture intents,
// transport commands and async job results never interleave mid-update.
package session

import (
	"sync"

	"github.com/loopdrill/loopdrill/internal/types"
)

// Hub routes background job results to the sessions that still care.
// It is the sink the worker pool delivers into: a result for media no
// session has loaded is dropped at the door.
type Hub struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[*Session]struct{})}
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
}

func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

// ActiveMedia reports whether any session currently has mediaKey loaded.
func (h *Hub) ActiveMedia(mediaKey string) bool {
	for _, s := range h.snapshot() {
		if s.MediaKey() == mediaKey {
			return true
		}
	}
	return false
}

// DeliverWaveform hands decoded peaks to every session on that media.
func (h *Hub) DeliverWaveform(mediaKey string, wf types.WaveformData) {
	for _, s := range h.snapshot() {
		s.postWaveform(mediaKey, wf)
	}
}

// DeliverTranscript hands a finished transcript to every session on that
// media.
func (h *Hub) DeliverTranscript(mediaKey string, res *types.TranscriptionResult) {
	for _, s := range h.snapshot() {
		s.postTranscript(mediaKey, res)
	}
}

func (h *Hub) snapshot() []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		out = append(out, s)
	}
	return out
}

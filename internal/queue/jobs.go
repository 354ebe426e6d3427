package queue

import (
	"time"

	"github.com/loopdrill/loopdrill/internal/types"
)

// Job is one unit of background work: decoding a waveform or running a
// transcription for a media item.
type Job struct {
	ID        string
	Kind      string // types.JobWaveform or types.JobTranscribe
	MediaKey  string
	BlobID    string
	Name      string
	Duration  float64 // known media duration, for fallback timing
	Status    string
	Error     error
	CreatedAt time.Time
}

// NewJob creates a queued job.
func NewJob(id, kind, mediaKey, blobID, name string) *Job {
	return &Job{
		ID:        id,
		Kind:      kind,
		MediaKey:  mediaKey,
		BlobID:    blobID,
		Name:      name,
		Status:    types.StatusQueued,
		CreatedAt: time.Now(),
	}
}

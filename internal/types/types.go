package types

import "time"

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Job kind constants
const (
	JobWaveform   = "waveform"
	JobTranscribe = "transcribe"
)

// SeekOrigin distinguishes user scrubs from seeks the engine issues
// itself (loop wraps, auto-advance jumps). Engine-origin seeks must never
// feed back into loop-policy decisions.
type SeekOrigin string

const (
	SeekUser   SeekOrigin = "user"
	SeekEngine SeekOrigin = "engine"
)

// MediaClockState mirrors the host playback element. CurrentTime is
// clamped to [0, Duration] on every write.
type MediaClockState struct {
	CurrentTime  float64 `json:"currentTime"`
	Duration     float64 `json:"duration"`
	IsPlaying    bool    `json:"isPlaying"`
	PlaybackRate float64 `json:"playbackRate"`
	Volume       float64 `json:"volume"`
	Muted        bool    `json:"muted"`
}

// LoopRegion is the transient A-B loop. Cleared on media change, never
// persisted. If both bounds are set, Start < End.
type LoopRegion struct {
	Start     *float64 `json:"start"`
	End       *float64 `json:"end"`
	IsLooping bool     `json:"isLooping"`
}

// Bookmark is a named, persisted time range scoped to one media item.
type Bookmark struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Start        float64   `json:"start"`
	End          float64   `json:"end"`
	CreatedAt    time.Time `json:"createdAt"`
	Annotation   string    `json:"annotation,omitempty"`
	MediaKey     string    `json:"mediaKey"`
	PlaybackRate float64   `json:"playbackRate,omitempty"`
}

// Duration returns the bookmark's length in seconds.
func (b Bookmark) Duration() float64 { return b.End - b.Start }

// LaneAssignment is derived fresh per render and never stored.
type LaneAssignment struct {
	BookmarkID string `json:"bookmarkId"`
	Lane       int    `json:"lane"`
}

// TranscriptSegment is one reconstructed, loop-safe transcript entry.
// Adjacent segments sorted by time have gap <= a small epsilon.
type TranscriptSegment struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"isFinal"`
}

// RawSegment is a speech-recognition segment before reconstruction.
type RawSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	AvgLogprob float64 `json:"avg_logprob"`
}

// RawWord is a word-level timestamp from the recognizer.
type RawWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptionResult is the recognizer output for one media item.
type TranscriptionResult struct {
	MediaKey    string              `json:"mediaKey"`
	Text        string              `json:"text"`
	Language    string              `json:"language"`
	Duration    float64             `json:"duration"`
	Segments    []RawSegment        `json:"segments"`
	Words       []RawWord           `json:"words,omitempty"`
	Reassembled []TranscriptSegment `json:"reassembled,omitempty"`
	Simulated   bool                `json:"simulated,omitempty"`
	ProcessedAt time.Time           `json:"processedAt"`
}

// WaveformData holds peak buckets extracted from decoded audio.
type WaveformData struct {
	Peaks      []float64 `json:"peaks"`
	Duration   float64   `json:"duration"`
	Resolution int       `json:"resolution"`
	SampleRate int       `json:"sample_rate"`
}

// PlaybackEventKind discriminates the events the engine reducer consumes.
type PlaybackEventKind string

const (
	EventTick        PlaybackEventKind = "tick"
	EventDuration    PlaybackEventKind = "duration"
	EventEnded       PlaybackEventKind = "ended"
	EventSeeked      PlaybackEventKind = "seeked"
	EventRateChanged PlaybackEventKind = "rate"
)

// PlaybackEvent is the single discriminated union fed to the engine;
// only the fields relevant to Kind are populated.
type PlaybackEvent struct {
	Kind        PlaybackEventKind `json:"kind"`
	CurrentTime float64           `json:"currentTime"`
	Duration    float64           `json:"duration,omitempty"`
	Rate        float64           `json:"rate,omitempty"`
	Origin      SeekOrigin        `json:"origin,omitempty"`
}

// Preferences are the persisted UI defaults. Loop region and bookmark
// selection are intentionally session-only.
type Preferences struct {
	DefaultZoom float64 `json:"defaultZoom"`
	Theme       string  `json:"theme"`
}

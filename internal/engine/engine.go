package engine

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/loopdrill/loopdrill/internal/types"
)

// Transport is the slice of the playback contract the engine drives.
// Every seek the engine issues carries SeekEngine origin so it can be told
// apart from user scrubs.
type Transport interface {
	Seek(t float64, origin types.SeekOrigin)
	SetRate(rate float64)
}

// BookmarkStore persists bookmark mutations. Failures are recoverable:
// the engine keeps its in-memory set authoritative and logs the error.
type BookmarkStore interface {
	SaveBookmark(b types.Bookmark) error
	UpdateBookmark(b types.Bookmark) error
	DeleteBookmark(id string) error
}

// Loop-boundary tolerances, in seconds.
const (
	endEpsilon     = 0.005 // absorbs clock jitter at the loop end
	startTolerance = 0.020 // scrubs this far before start snap forward
	toggleTol      = 0.050 // bookmark bounds matching for add-toggle
	outsideTol     = 0.050 // user seek outside bounds by more than this
	defaultBookLen = 2.0   // double-tap bookmark length
)

// Engine owns loop-region and bookmark state and enforces A-B loop and
// auto-advance semantics against playback events. All methods take the
// engine mutex; each transition reads and writes the full relevant state
// within one call so partial updates never interleave.
type Engine struct {
	mu    sync.Mutex
	log   zerolog.Logger
	tr    Transport
	store BookmarkStore

	mediaKey  string
	clock     types.MediaClockState
	region    types.LoopRegion
	bookmarks []types.Bookmark
	selected  string
	autoAdv   bool

	// Set after an engine-issued wrap until the clock is observed back
	// inside the loop, so coalesced stale ticks cannot double-fire.
	awaitingSeek bool
	seekTarget   float64
}

// New returns an engine with no media loaded. store may be nil.
func New(log zerolog.Logger, tr Transport, store BookmarkStore) *Engine {
	return &Engine{
		log:   log.With().Str("component", "engine").Logger(),
		tr:    tr,
		store: store,
		clock: types.MediaClockState{PlaybackRate: 1, Volume: 1},
	}
}

// SetMedia switches the active media. The loop region, selection and
// auto-advance are transient per media and reset here; the bookmark set is
// replaced wholesale so nothing bleeds across media.
func (e *Engine) SetMedia(mediaKey string, bookmarks []types.Bookmark) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mediaKey = mediaKey
	e.bookmarks = append([]types.Bookmark(nil), bookmarks...)
	e.region = types.LoopRegion{}
	e.selected = ""
	e.autoAdv = false
	e.awaitingSeek = false
	e.clock = types.MediaClockState{PlaybackRate: 1, Volume: 1}
	e.log.Info().Str("media", mediaKey).Int("bookmarks", len(bookmarks)).Msg("media loaded")
}

// MediaKey returns the active media identity.
func (e *Engine) MediaKey() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mediaKey
}

// HandleEvent is the single reducer for playback events. It is safe to
// call with out-of-order or coalesced ticks; boundary checks re-derive
// everything from the event time, so replays converge.
func (e *Engine) HandleEvent(ev types.PlaybackEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Kind {
	case types.EventTick:
		e.onTick(ev.CurrentTime)
	case types.EventDuration:
		if ev.Duration >= 0 {
			e.clock.Duration = ev.Duration
			e.clock.CurrentTime = clamp(e.clock.CurrentTime, 0, ev.Duration)
		}
	case types.EventSeeked:
		e.onSeeked(ev.CurrentTime, ev.Origin)
	case types.EventEnded:
		e.clock.IsPlaying = false
		e.onTick(e.clock.Duration)
	case types.EventRateChanged:
		if ev.Rate > 0 {
			e.clock.PlaybackRate = ev.Rate
		}
	}
}

func (e *Engine) onTick(t float64) {
	e.clock.CurrentTime = clamp(t, 0, e.clock.Duration)

	if !e.region.IsLooping || e.region.Start == nil || e.region.End == nil {
		return
	}
	start, end := *e.region.Start, *e.region.End

	if e.awaitingSeek {
		// A wrap is in flight. Stale ticks still past the boundary are
		// echoes of the pre-seek position; drop them.
		if t >= end-endEpsilon {
			return
		}
		e.awaitingSeek = false
	}

	switch {
	case t >= end+endEpsilon:
		if e.autoAdv && e.selected != "" {
			e.advanceLocked()
		} else {
			e.engineSeekLocked(start)
		}
	case t < start-startTolerance && t > 0:
		// Scrubbed just before the loop: snap forward to the start.
		e.engineSeekLocked(start)
	}
}

// advanceLocked moves to the next bookmark in start order, wrapping
// circularly, and re-arms the loop on the new bounds.
func (e *Engine) advanceLocked() {
	sorted := e.sortedBookmarksLocked()
	if len(sorted) == 0 {
		e.engineSeekLocked(*e.region.Start)
		return
	}
	idx := 0
	for i, b := range sorted {
		if b.ID == e.selected {
			idx = (i + 1) % len(sorted)
			break
		}
	}
	next := sorted[idx]
	e.selected = next.ID
	s, en := next.Start, next.End
	e.region = types.LoopRegion{Start: &s, End: &en, IsLooping: true}
	if next.PlaybackRate > 0 {
		e.clock.PlaybackRate = next.PlaybackRate
		e.tr.SetRate(next.PlaybackRate)
	}
	e.log.Debug().Str("bookmark", next.ID).Float64("start", s).Msg("auto-advance")
	e.engineSeekLocked(s)
}

func (e *Engine) onSeeked(t float64, origin types.SeekOrigin) {
	e.clock.CurrentTime = clamp(t, 0, e.clock.Duration)
	if origin == types.SeekEngine {
		e.awaitingSeek = false
		return
	}
	// Policy: a user seek outside the active loop bounds disables looping
	// rather than snapping back. The scrub is an explicit instruction to
	// leave the region; auto-advance goes with it.
	if e.region.IsLooping && e.region.Start != nil && e.region.End != nil {
		if t < *e.region.Start-outsideTol || t > *e.region.End+outsideTol {
			e.region.IsLooping = false
			e.autoAdv = false
			e.awaitingSeek = false
			e.log.Debug().Float64("t", t).Msg("user seek left loop bounds; looping disabled")
		}
	}
}

func (e *Engine) engineSeekLocked(t float64) {
	e.awaitingSeek = true
	e.seekTarget = t
	e.clock.CurrentTime = clamp(t, 0, e.clock.Duration)
	e.tr.Seek(t, types.SeekEngine)
}

// SetLoopRegion installs an A-B loop. Zero-or-negative regions are
// discarded silently per the gesture failure policy.
func (e *Engine) SetLoopRegion(start, end float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start = clamp(start, 0, e.clock.Duration)
	end = clamp(end, 0, e.clock.Duration)
	if end-start <= 0 {
		return
	}
	e.region = types.LoopRegion{Start: &start, End: &end, IsLooping: true}
	e.awaitingSeek = false
}

// ClearLoop drops the loop region and leaves playback alone.
func (e *Engine) ClearLoop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.region = types.LoopRegion{}
	e.autoAdv = false
	e.awaitingSeek = false
}

// SetLooping flips loop enforcement without touching the bounds.
func (e *Engine) SetLooping(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.region.Start == nil || e.region.End == nil {
		return
	}
	e.region.IsLooping = on
	if !on {
		e.autoAdv = false
	}
}

// SetAutoAdvance enables round-robin traversal of the bookmark list. It
// needs a selected bookmark to anchor the rotation; enabling it loads the
// selected bookmark's bounds as the active loop.
func (e *Engine) SetAutoAdvance(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !on {
		e.autoAdv = false
		return
	}
	b, ok := e.findLocked(e.selected)
	if !ok {
		sorted := e.sortedBookmarksLocked()
		if len(sorted) == 0 {
			return
		}
		b = sorted[0]
		e.selected = b.ID
	}
	s, en := b.Start, b.End
	e.region = types.LoopRegion{Start: &s, End: &en, IsLooping: true}
	e.autoAdv = true
}

// Region returns a copy of the loop region.
func (e *Engine) Region() types.LoopRegion {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.region
}

// Clock returns a copy of the mirrored clock state.
func (e *Engine) Clock() types.MediaClockState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// Snapshot is the engine state pushed to renderers.
type Snapshot struct {
	MediaKey    string                `json:"mediaKey"`
	Clock       types.MediaClockState `json:"clock"`
	Region      types.LoopRegion      `json:"region"`
	Bookmarks   []types.Bookmark      `json:"bookmarks"`
	SelectedID  string                `json:"selectedId,omitempty"`
	AutoAdvance bool                  `json:"autoAdvance"`
}

// Snapshot copies the full visible state in one lock hold.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		MediaKey:    e.mediaKey,
		Clock:       e.clock,
		Region:      e.region,
		Bookmarks:   append([]types.Bookmark(nil), e.bookmarks...),
		SelectedID:  e.selected,
		AutoAdvance: e.autoAdv,
	}
}

func clamp(x, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

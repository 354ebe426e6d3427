package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/loopdrill/loopdrill/internal/types"
)

// AddBookmark creates a bookmark over [start,end] on the active media.
// Invalid ranges are clamped; a non-positive result is discarded and
// returns false.
func (e *Engine) AddBookmark(name string, start, end float64) (types.Bookmark, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addLocked(name, start, end)
}

func (e *Engine) addLocked(name string, start, end float64) (types.Bookmark, bool) {
	start = clamp(start, 0, e.clock.Duration)
	end = clamp(end, 0, e.clock.Duration)
	if end-start <= 0 {
		return types.Bookmark{}, false
	}
	if name == "" {
		name = fmt.Sprintf("Loop %d", len(e.bookmarks)+1)
	}
	b := types.Bookmark{
		ID:        uuid.New().String(),
		Name:      name,
		Start:     start,
		End:       end,
		CreatedAt: time.Now(),
		MediaKey:  e.mediaKey,
	}
	e.bookmarks = append(e.bookmarks, b)
	e.persistSave(b)
	return b, true
}

// ToggleBookmarkForRegion adds a bookmark matching the current loop
// region, or removes a pre-existing bookmark whose bounds match it within
// 50ms, so pressing "bookmark this loop" twice leaves no bookmark behind.
// The second return reports whether a bookmark now exists for the range.
func (e *Engine) ToggleBookmarkForRegion(name string) (types.Bookmark, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.region.Start == nil || e.region.End == nil {
		return types.Bookmark{}, false
	}
	start, end := *e.region.Start, *e.region.End
	for _, b := range e.bookmarks {
		if math.Abs(b.Start-start) <= toggleTol && math.Abs(b.End-end) <= toggleTol {
			e.deleteLocked(b.ID)
			return types.Bookmark{}, false
		}
	}
	return e.addLocked(name, start, end)
}

// ToggleBookmarkAt handles the double-tap intent: remove the nearest
// bookmark containing t, else create a default-duration one at t.
// Ambiguous taps (multiple matches) never reach here; the gesture layer
// reports them for disambiguation.
func (e *Engine) ToggleBookmarkAt(t float64) (types.Bookmark, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		nearest string
		best    = math.MaxFloat64
	)
	for _, b := range e.bookmarks {
		if t >= b.Start && t <= b.End {
			d := math.Abs(t - (b.Start+b.End)/2)
			if d < best {
				best = d
				nearest = b.ID
			}
		}
	}
	if nearest != "" {
		e.deleteLocked(nearest)
		return types.Bookmark{}, false
	}
	end := t + defaultBookLen
	if e.clock.Duration > 0 && end > e.clock.Duration {
		end = e.clock.Duration
	}
	return e.addLocked("", t, end)
}

// RenameBookmark updates a bookmark's display name.
func (e *Engine) RenameBookmark(id, name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.bookmarks {
		if e.bookmarks[i].ID == id {
			e.bookmarks[i].Name = name
			e.persistUpdate(e.bookmarks[i])
			return true
		}
	}
	return false
}

// Annotate sets a bookmark's annotation text.
func (e *Engine) Annotate(id, annotation string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.bookmarks {
		if e.bookmarks[i].ID == id {
			e.bookmarks[i].Annotation = annotation
			e.persistUpdate(e.bookmarks[i])
			return true
		}
	}
	return false
}

// ResizeBookmark moves one edge of a bookmark, clamped so start stays
// below end and inside the media. If the bookmark backs the active loop,
// the loop bounds follow.
func (e *Engine) ResizeBookmark(id string, edge string, value float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	const minGap = 0.01
	for i := range e.bookmarks {
		b := &e.bookmarks[i]
		if b.ID != id {
			continue
		}
		switch edge {
		case "start":
			b.Start = clamp(value, 0, b.End-minGap)
		case "end":
			hi := e.clock.Duration
			if hi == 0 {
				hi = math.MaxFloat64
			}
			b.End = clamp(value, b.Start+minGap, hi)
		default:
			return false
		}
		if e.selected == id && e.region.IsLooping {
			s, en := b.Start, b.End
			e.region.Start, e.region.End = &s, &en
		}
		e.persistUpdate(*b)
		return true
	}
	return false
}

// DeleteBookmark removes a bookmark; selection and auto-advance are
// dropped with it.
func (e *Engine) DeleteBookmark(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteLocked(id)
}

func (e *Engine) deleteLocked(id string) bool {
	for i := range e.bookmarks {
		if e.bookmarks[i].ID == id {
			e.bookmarks = append(e.bookmarks[:i], e.bookmarks[i+1:]...)
			if e.selected == id {
				e.selected = ""
				e.autoAdv = false
			}
			if e.store != nil {
				if err := e.store.DeleteBookmark(id); err != nil {
					e.log.Warn().Err(err).Str("id", id).Msg("bookmark delete not persisted")
				}
			}
			return true
		}
	}
	return false
}

// LoadBookmark makes a bookmark the active loop: region set to its
// bounds, looping on, selection moved, saved playback rate applied.
func (e *Engine) LoadBookmark(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.findLocked(id)
	if !ok {
		return false
	}
	s, en := b.Start, b.End
	e.region = types.LoopRegion{Start: &s, End: &en, IsLooping: true}
	e.selected = id
	e.awaitingSeek = false
	if b.PlaybackRate > 0 {
		e.clock.PlaybackRate = b.PlaybackRate
		e.tr.SetRate(b.PlaybackRate)
	}
	e.engineSeekLocked(s)
	return true
}

// GoToBookmark steps the selection through the start-ordered bookmark
// list. direction is +1 or -1; navigation wraps circularly. With no
// selection, the nearest bookmark starting after the playhead anchors the
// step.
func (e *Engine) GoToBookmark(direction int) (types.Bookmark, bool) {
	e.mu.Lock()
	sorted := e.sortedBookmarksLocked()
	if len(sorted) == 0 {
		e.mu.Unlock()
		return types.Bookmark{}, false
	}
	idx := -1
	if e.selected != "" {
		for i, b := range sorted {
			if b.ID == e.selected {
				idx = i
				break
			}
		}
	}
	n := len(sorted)
	if idx == -1 {
		// No selection: the playhead sits between two bookmarks. Forward
		// lands on the nearest one starting after it; backward on the one
		// before that, wrapping circularly.
		idx = 0
		for i, b := range sorted {
			if b.Start > e.clock.CurrentTime {
				idx = i
				break
			}
		}
		if direction < 0 {
			idx = ((idx+direction)%n + n) % n
		}
		target := sorted[idx].ID
		e.mu.Unlock()
		if !e.LoadBookmark(target) {
			return types.Bookmark{}, false
		}
		return sorted[idx], true
	}
	target := sorted[((idx+direction)%n+n)%n].ID
	e.mu.Unlock()

	if !e.LoadBookmark(target) {
		return types.Bookmark{}, false
	}
	e.mu.Lock()
	b, _ := e.findLocked(target)
	e.mu.Unlock()
	return b, true
}

// ImportBookmarks appends programmatically-created bookmarks (transcript
// segments, restored exports) for the active media.
func (e *Engine) ImportBookmarks(bookmarks []types.Bookmark) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, b := range bookmarks {
		if b.End-b.Start <= 0 {
			continue
		}
		if b.ID == "" {
			b.ID = uuid.New().String()
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = time.Now()
		}
		b.MediaKey = e.mediaKey
		e.bookmarks = append(e.bookmarks, b)
		e.persistSave(b)
		n++
	}
	return n
}

// Bookmarks returns a copy of the active media's bookmarks.
func (e *Engine) Bookmarks() []types.Bookmark {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.Bookmark(nil), e.bookmarks...)
}

// Selected returns the active bookmark id, or "".
func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

func (e *Engine) findLocked(id string) (types.Bookmark, bool) {
	for _, b := range e.bookmarks {
		if b.ID == id {
			return b, true
		}
	}
	return types.Bookmark{}, false
}

func (e *Engine) sortedBookmarksLocked() []types.Bookmark {
	sorted := append([]types.Bookmark(nil), e.bookmarks...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func (e *Engine) persistSave(b types.Bookmark) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveBookmark(b); err != nil {
		e.log.Warn().Err(err).Str("id", b.ID).Msg("bookmark save not persisted")
	}
}

func (e *Engine) persistUpdate(b types.Bookmark) {
	if e.store == nil {
		return
	}
	if err := e.store.UpdateBookmark(b); err != nil {
		e.log.Warn().Err(err).Str("id", b.ID).Msg("bookmark update not persisted")
	}
}

package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopdrill/loopdrill/internal/types"
)

// fakeTransport records engine-issued transport commands.
type fakeTransport struct {
	seeks []float64
	rates []float64
}

func (f *fakeTransport) Seek(t float64, origin types.SeekOrigin) {
	if origin != types.SeekEngine {
		panic("engine must seek with engine origin")
	}
	f.seeks = append(f.seeks, t)
}

func (f *fakeTransport) SetRate(rate float64) { f.rates = append(f.rates, rate) }

func newTestEngine(t *testing.T, duration float64) (*Engine, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	e := New(zerolog.Nop(), tr, nil)
	e.SetMedia("media-1", nil)
	e.HandleEvent(types.PlaybackEvent{Kind: types.EventDuration, Duration: duration})
	return e, tr
}

func tick(e *Engine, t float64) {
	e.HandleEvent(types.PlaybackEvent{Kind: types.EventTick, CurrentTime: t})
}

func TestLoopWrapFiresExactlyOnce(t *testing.T) {
	e, tr := newTestEngine(t, 10)
	e.SetLoopRegion(2.0, 5.0)

	tick(e, 4.9)
	tick(e, 5.01)
	tick(e, 5.02) // coalesced stale tick after the wrap

	require.Equal(t, []float64{2.0}, tr.seeks)

	// Once the clock lands back inside, a later crossing wraps again.
	tick(e, 2.0)
	tick(e, 5.2)
	assert.Equal(t, []float64{2.0, 2.0}, tr.seeks)
}

func TestScrubBeforeStartSnapsForward(t *testing.T) {
	e, tr := newTestEngine(t, 10)
	e.SetLoopRegion(2.0, 5.0)

	tick(e, 1.5)
	require.Equal(t, []float64{2.0}, tr.seeks)

	// Within the start tolerance: leave it alone.
	tick(e, 2.0)
	tick(e, 1.995)
	assert.Len(t, tr.seeks, 1)

	// At exactly zero (fresh load) no snap is forced.
	e2, tr2 := newTestEngine(t, 10)
	e2.SetLoopRegion(2.0, 5.0)
	tick(e2, 0)
	assert.Empty(t, tr2.seeks)
}

func TestAutoAdvanceFullCycle(t *testing.T) {
	e, tr := newTestEngine(t, 6)
	a, _ := e.AddBookmark("A", 0, 2)
	e.AddBookmark("B", 2, 4)
	e.AddBookmark("C", 4, 6)
	require.True(t, e.LoadBookmark(a.ID))
	e.SetAutoAdvance(true)
	tick(e, 0) // clock settles at the loop start after the load seek
	tr.seeks = nil

	cross := func(boundary float64) {
		tick(e, boundary+0.01)
		snap := e.Snapshot()
		tick(e, *snap.Region.Start)
	}

	cross(2) // A -> B
	assert.Equal(t, "B", nameOfSelected(e))
	cross(4) // B -> C
	assert.Equal(t, "C", nameOfSelected(e))
	cross(6) // C -> A (wraps)
	assert.Equal(t, "A", nameOfSelected(e))

	require.Equal(t, []float64{2, 4, 0}, tr.seeks)

	snap := e.Snapshot()
	assert.True(t, snap.Region.IsLooping)
	assert.InDelta(t, 0.0, *snap.Region.Start, 1e-9)
	assert.InDelta(t, 2.0, *snap.Region.End, 1e-9)
}

func TestUserSeekOutsideLoopDisablesLooping(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.SetLoopRegion(2.0, 5.0)

	e.HandleEvent(types.PlaybackEvent{Kind: types.EventSeeked, CurrentTime: 8, Origin: types.SeekUser})
	snap := e.Snapshot()
	assert.False(t, snap.Region.IsLooping)
	assert.False(t, snap.AutoAdvance)
}

func TestUserSeekInsideLoopKeepsLooping(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.SetLoopRegion(2.0, 5.0)

	e.HandleEvent(types.PlaybackEvent{Kind: types.EventSeeked, CurrentTime: 3, Origin: types.SeekUser})
	assert.True(t, e.Region().IsLooping)
}

func TestEngineSeekNeverDisablesLooping(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.SetLoopRegion(2.0, 5.0)

	e.HandleEvent(types.PlaybackEvent{Kind: types.EventSeeked, CurrentTime: 9, Origin: types.SeekEngine})
	assert.True(t, e.Region().IsLooping)
}

func TestZeroDurationRegionDiscarded(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.SetLoopRegion(3, 3)
	assert.Nil(t, e.Region().Start)
	e.SetLoopRegion(4, 2)
	assert.Nil(t, e.Region().Start)
}

func TestToggleBookmarkForRegionIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.SetLoopRegion(1.0, 3.0)

	_, exists := e.ToggleBookmarkForRegion("practice")
	assert.True(t, exists)
	require.Len(t, e.Bookmarks(), 1)

	// Second toggle with an unchanged region removes it, even when the
	// bounds differ inside the 50ms tolerance.
	_, exists = e.ToggleBookmarkForRegion("practice")
	assert.False(t, exists)
	assert.Empty(t, e.Bookmarks())
}

func TestToggleBookmarkAt(t *testing.T) {
	e, _ := newTestEngine(t, 10)

	b, created := e.ToggleBookmarkAt(3.0)
	require.True(t, created)
	assert.InDelta(t, 3.0, b.Start, 1e-9)
	assert.InDelta(t, 5.0, b.End, 1e-9)

	// Double-tap inside it again removes it.
	_, created = e.ToggleBookmarkAt(3.5)
	assert.False(t, created)
	assert.Empty(t, e.Bookmarks())

	// Near the media end the default length is clamped.
	b, created = e.ToggleBookmarkAt(9.5)
	require.True(t, created)
	assert.InDelta(t, 10.0, b.End, 1e-9)
}

func TestLoadBookmarkAppliesRate(t *testing.T) {
	e, tr := newTestEngine(t, 10)
	b, _ := e.AddBookmark("slow", 1, 2)
	e.RenameBookmark(b.ID, "slow half")
	require.True(t, e.ResizeBookmark(b.ID, "end", 3))

	// Give it a saved rate through import.
	e.DeleteBookmark(b.ID)
	e.ImportBookmarks([]types.Bookmark{{Name: "slow", Start: 1, End: 3, PlaybackRate: 0.5}})
	id := e.Bookmarks()[0].ID

	require.True(t, e.LoadBookmark(id))
	snap := e.Snapshot()
	assert.True(t, snap.Region.IsLooping)
	assert.Equal(t, id, snap.SelectedID)
	assert.Equal(t, 0.5, snap.Clock.PlaybackRate)
	assert.Equal(t, []float64{0.5}, tr.rates)
	assert.Equal(t, 1.0, tr.seeks[len(tr.seeks)-1])
}

func TestGoToBookmarkWraps(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.AddBookmark("A", 1, 2)
	e.AddBookmark("B", 4, 5)
	e.AddBookmark("C", 7, 8)

	// No selection, playhead at 3: nearest upcoming is B.
	tick(e, 3)
	b, ok := e.GoToBookmark(1)
	require.True(t, ok)
	assert.Equal(t, "B", b.Name)

	b, _ = e.GoToBookmark(1)
	assert.Equal(t, "C", b.Name)
	b, _ = e.GoToBookmark(1)
	assert.Equal(t, "A", b.Name)
	b, _ = e.GoToBookmark(-1)
	assert.Equal(t, "C", b.Name)
}

func TestGoToBookmarkBackwardWithoutSelection(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.AddBookmark("A", 1, 2)
	e.AddBookmark("B", 4, 5)
	e.AddBookmark("C", 7, 8)

	// No selection, playhead at 3: backward steps to the bookmark before
	// the playhead, not the upcoming one.
	tick(e, 3)
	b, ok := e.GoToBookmark(-1)
	require.True(t, ok)
	assert.Equal(t, "A", b.Name)

	// Past the last bookmark, backward lands on the last.
	e2, _ := newTestEngine(t, 10)
	e2.AddBookmark("A", 1, 2)
	e2.AddBookmark("B", 4, 5)
	tick(e2, 9)
	b, ok = e2.GoToBookmark(-1)
	require.True(t, ok)
	assert.Equal(t, "B", b.Name)
}

func TestResizeClampsDefensively(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	b, _ := e.AddBookmark("A", 2, 4)

	// Start cannot cross the end.
	e.ResizeBookmark(b.ID, "start", 9)
	got := e.Bookmarks()[0]
	assert.Less(t, got.Start, got.End)

	// End clamps to the media duration.
	e.ResizeBookmark(b.ID, "end", 99)
	got = e.Bookmarks()[0]
	assert.Equal(t, 10.0, got.End)
}

func TestSetMediaClearsTransientState(t *testing.T) {
	e, _ := newTestEngine(t, 10)
	e.AddBookmark("A", 1, 2)
	e.SetLoopRegion(1, 2)

	e.SetMedia("media-2", nil)
	snap := e.Snapshot()
	assert.Empty(t, snap.Bookmarks)
	assert.False(t, snap.Region.IsLooping)
	assert.Nil(t, snap.Region.Start)
	assert.Empty(t, snap.SelectedID)
}

func nameOfSelected(e *Engine) string {
	snap := e.Snapshot()
	for _, b := range snap.Bookmarks {
		if b.ID == snap.SelectedID {
			return b.Name
		}
	}
	return ""
}

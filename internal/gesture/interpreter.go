package gesture

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/loopdrill/loopdrill/internal/timeline"
)

// Pointer session states.
type state int

const (
	stateIdle state = iota
	stateDeciding
	stateDragging
	stateResizing
	statePinching
)

// Edge names which bookmark bound a resize moves.
type Edge string

const (
	EdgeStart Edge = "start"
	EdgeEnd   Edge = "end"
)

// IntentKind discriminates interpreter outputs.
type IntentKind string

const (
	IntentSeek           IntentKind = "seek"
	IntentLoopSelect     IntentKind = "loop_select"
	IntentResize         IntentKind = "resize"
	IntentToggleBookmark IntentKind = "toggle_bookmark"
	IntentAmbiguousTap   IntentKind = "ambiguous_tap"
	IntentZoom           IntentKind = "zoom"
)

// Intent is a timeline mutation request produced from raw pointer input.
type Intent struct {
	Kind       IntentKind
	Time       float64  // seek target, toggle point
	Start      float64  // loop selection bounds
	End        float64
	BookmarkID string   // resize target
	Edge       Edge     // resize edge
	Value      float64  // resize live value
	Zoom       float64  // new zoom factor
	Candidates []string // ambiguous double-tap matches
}

// Rect is a bookmark as displayed: its time bounds plus packed lane.
type Rect struct {
	BookmarkID string
	Start      float64
	End        float64
	Lane       int
}

// Thresholds. Pixel values assume CSS-pixel pointer coordinates.
const (
	dragThresholdPx = 5.0
	minDragSeconds  = 0.1
	edgeTolerancePx = 6.0
	laneHeightPx    = 18.0
	doubleTapMs     = 300
	doubleTapTolPx  = 12.0
	wheelZoomStep   = 1.1
)

// Interpreter turns pointer/touch/wheel events into intents. One
// interpreter serves one timeline strip; feed it the current viewport and
// visible bookmark rects before each event batch via SetView.
type Interpreter struct {
	log     zerolog.Logger
	view    timeline.Viewport
	widthPx float64
	rects   []Rect

	st         state
	downX      float64
	downY      float64
	downTime   float64 // media time under the initial press
	curX       float64
	resizeID   string
	resizeEdge Edge

	// pinch bookkeeping
	pinchStartDist float64
	pinchStartZoom float64

	// double-tap memory
	lastTapMs float64
	lastTapX  float64
}

// New returns an idle interpreter.
func New(log zerolog.Logger) *Interpreter {
	return &Interpreter{log: log.With().Str("component", "gesture").Logger()}
}

// SetView updates the geometry and hit-test rects used for interpretation.
func (in *Interpreter) SetView(view timeline.Viewport, widthPx float64, rects []Rect) {
	in.view = view
	in.widthPx = widthPx
	in.rects = rects
}

// PointerDown starts a session. nowMs is a monotonic millisecond stamp.
func (in *Interpreter) PointerDown(x, y, nowMs float64) []Intent {
	if in.widthPx <= 0 || in.view.Duration <= 0 {
		return nil
	}
	if id, edge, ok := in.hitEdge(x, y); ok {
		in.st = stateResizing
		in.resizeID = id
		in.resizeEdge = edge
		return nil
	}
	in.st = stateDeciding
	in.downX, in.downY = x, y
	in.curX = x
	in.downTime = in.view.PixelToTime(x, in.widthPx)
	return nil
}

// SecondPointerDown begins a pinch; the session switches to zooming and
// any pending drag/tap is abandoned.
func (in *Interpreter) SecondPointerDown(x1, x2 float64) []Intent {
	in.st = statePinching
	in.pinchStartDist = math.Abs(x2 - x1)
	in.pinchStartZoom = in.view.Zoom
	return nil
}

// PinchMove rescales zoom by the ratio of pointer distances.
func (in *Interpreter) PinchMove(x1, x2 float64) []Intent {
	if in.st != statePinching || in.pinchStartDist == 0 {
		return nil
	}
	factor := math.Abs(x2-x1) / in.pinchStartDist
	z := timeline.ClampZoom(in.pinchStartZoom * factor)
	return []Intent{{Kind: IntentZoom, Zoom: z}}
}

// PointerMove advances the session. Resizes emit a live intent per move.
func (in *Interpreter) PointerMove(x, y float64) []Intent {
	switch in.st {
	case stateDeciding:
		if math.Abs(x-in.downX) > dragThresholdPx {
			in.st = stateDragging
		}
		in.curX = x
		return nil
	case stateDragging:
		in.curX = x
		return nil
	case stateResizing:
		return in.resizeTo(x)
	default:
		return nil
	}
}

// PointerUp ends the session, resolving it to a loop selection, a seek, a
// double-tap bookmark toggle, or nothing.
func (in *Interpreter) PointerUp(x, y, nowMs float64) []Intent {
	st := in.st
	in.st = stateIdle
	switch st {
	case stateDragging:
		upTime := in.view.PixelToTime(x, in.widthPx)
		lo, hi := math.Min(in.downTime, upTime), math.Max(in.downTime, upTime)
		if math.Abs(x-in.downX) > dragThresholdPx && hi-lo > minDragSeconds {
			return []Intent{{Kind: IntentLoopSelect, Start: lo, End: hi}}
		}
		return in.tap(x, nowMs)
	case stateDeciding:
		return in.tap(x, nowMs)
	case stateResizing:
		in.resizeID = ""
		return nil
	default:
		return nil
	}
}

// Wheel applies a multiplicative zoom step per notch (positive = in).
func (in *Interpreter) Wheel(notches float64) []Intent {
	z := in.view.Zoom * math.Pow(wheelZoomStep, notches)
	return []Intent{{Kind: IntentZoom, Zoom: timeline.ClampZoom(z)}}
}

// Cancel aborts the active session without emitting anything.
func (in *Interpreter) Cancel() {
	in.st = stateIdle
	in.resizeID = ""
}

func (in *Interpreter) tap(x, nowMs float64) []Intent {
	t := in.view.PixelToTime(x, in.widthPx)
	isDouble := nowMs-in.lastTapMs <= doubleTapMs && math.Abs(x-in.lastTapX) <= doubleTapTolPx
	in.lastTapMs = nowMs
	in.lastTapX = x
	if !isDouble {
		return []Intent{{Kind: IntentSeek, Time: t}}
	}
	// Consumed: a triple tap should not chain into a second double.
	in.lastTapMs = 0

	matches := in.bookmarksAt(t)
	switch len(matches) {
	case 0, 1:
		// Toggle: engine creates a default-duration bookmark, or removes
		// the single nearest match.
		return []Intent{{Kind: IntentToggleBookmark, Time: t}}
	default:
		in.log.Debug().Int("matches", len(matches)).Float64("t", t).Msg("ambiguous double-tap")
		return []Intent{{Kind: IntentAmbiguousTap, Time: t, Candidates: matches}}
	}
}

func (in *Interpreter) resizeTo(x float64) []Intent {
	t := in.view.PixelToTime(x, in.widthPx)
	var r *Rect
	for i := range in.rects {
		if in.rects[i].BookmarkID == in.resizeID {
			r = &in.rects[i]
			break
		}
	}
	if r == nil {
		return nil
	}
	// Clamp so the bookmark keeps positive duration within the media.
	const minGap = 0.01
	switch in.resizeEdge {
	case EdgeStart:
		t = math.Max(0, math.Min(t, r.End-minGap))
	case EdgeEnd:
		t = math.Min(in.view.Duration, math.Max(t, r.Start+minGap))
	}
	return []Intent{{Kind: IntentResize, BookmarkID: in.resizeID, Edge: in.resizeEdge, Value: t}}
}

// hitEdge finds a bookmark edge within tolerance of the press point. The
// lane row from y narrows candidates before the x test.
func (in *Interpreter) hitEdge(x, y float64) (string, Edge, bool) {
	lane := int(y / laneHeightPx)
	for _, r := range in.rects {
		if r.Lane != lane {
			continue
		}
		startX := in.view.TimeToPixel(r.Start, in.widthPx)
		endX := in.view.TimeToPixel(r.End, in.widthPx)
		if math.Abs(x-startX) <= edgeTolerancePx {
			return r.BookmarkID, EdgeStart, true
		}
		if math.Abs(x-endX) <= edgeTolerancePx {
			return r.BookmarkID, EdgeEnd, true
		}
	}
	return "", "", false
}

// bookmarksAt lists rect IDs whose range contains t, nearest first.
func (in *Interpreter) bookmarksAt(t float64) []string {
	type cand struct {
		id   string
		dist float64
	}
	var cands []cand
	for _, r := range in.rects {
		if t >= r.Start && t <= r.End {
			mid := (r.Start + r.End) / 2
			cands = append(cands, cand{r.BookmarkID, math.Abs(t - mid)})
		}
	}
	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			if cands[j].dist < cands[i].dist {
				cands[i], cands[j] = cands[j], cands[i]
			}
		}
	}
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	return ids
}

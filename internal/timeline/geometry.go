package timeline

// Viewport is the zoomable, pannable window onto a media timeline.
// It is a pure value: every derived quantity is a function of
// (Duration, Zoom, CenterTime) and nothing else.
type Viewport struct {
	Duration   float64
	Zoom       float64
	CenterTime float64
}

// NewViewport clamps zoom into [MinZoom, MaxZoom] and returns a viewport.
func NewViewport(duration, zoom, centerTime float64) Viewport {
	if duration < 0 {
		duration = 0
	}
	return Viewport{
		Duration:   duration,
		Zoom:       ClampZoom(zoom),
		CenterTime: centerTime,
	}
}

// Zoom bounds shared with the gesture interpreter.
const (
	MinZoom = 1.0
	MaxZoom = 20.0
)

// ClampZoom bounds a zoom factor into [MinZoom, MaxZoom].
func ClampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// VisibleDuration is the span of time currently on screen.
func (v Viewport) VisibleDuration() float64 {
	if v.Duration == 0 {
		return 0
	}
	return v.Duration / v.Zoom
}

// ViewStart is the left edge of the visible window, clamped so the window
// never extends past either end of the media.
func (v Viewport) ViewStart() float64 {
	vis := v.VisibleDuration()
	if v.Duration < vis || v.Duration == 0 {
		return 0
	}
	start := v.CenterTime - vis/2
	return clamp(start, 0, v.Duration-vis)
}

// TimeToFraction maps a time to [0,1] across the visible window.
// Zero-duration media maps everything to 0 rather than NaN.
func (v Viewport) TimeToFraction(t float64) float64 {
	vis := v.VisibleDuration()
	if vis == 0 {
		return 0
	}
	return clamp((t-v.ViewStart())/vis, 0, 1)
}

// FractionToTime is the inverse of TimeToFraction for f in [0,1].
func (v Viewport) FractionToTime(f float64) float64 {
	f = clamp(f, 0, 1)
	return v.ViewStart() + f*v.VisibleDuration()
}

// TimeToPixel maps a time to a pixel x within a widthPx-wide strip.
func (v Viewport) TimeToPixel(t float64, widthPx float64) float64 {
	return v.TimeToFraction(t) * widthPx
}

// PixelToTime maps a pixel x within a widthPx-wide strip back to a time.
// Zero width maps to ViewStart.
func (v Viewport) PixelToTime(x, widthPx float64) float64 {
	if widthPx <= 0 {
		return v.ViewStart()
	}
	return v.FractionToTime(x / widthPx)
}

// Visible reports whether any part of [start,end] intersects the window.
func (v Viewport) Visible(start, end float64) bool {
	vs := v.ViewStart()
	return end >= vs && start <= vs+v.VisibleDuration()
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

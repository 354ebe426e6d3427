// Package playback defines the transport contract the loop engine drives
// and provides two backends for it: a local self-ticking clock and a
// remote embedded-player backend (embed.go). The engine is agnostic to
// which one is underneath.
package playback

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopdrill/loopdrill/internal/types"
)

// EventFunc receives clock events: periodic ticks, duration on metadata
// load, a seeked echo, and end-of-media.
type EventFunc func(types.PlaybackEvent)

// Transport is the full playback contract: the command surface plus the
// event stream wired at construction.
type Transport interface {
	Play()
	Pause()
	Seek(t float64, origin types.SeekOrigin)
	SetRate(rate float64)
	SetVolume(v float64, muted bool)
	State() types.MediaClockState
	Close() error
}

// tickInterval is the poll cadence for both backends. 50ms keeps loop
// boundary error well under the engine's wrap epsilon at 1x rate.
const tickInterval = 50 * time.Millisecond

// LocalClock simulates a host media element: time advances by wall-clock
// elapsed multiplied by the playback rate while playing. It backs local
// file practice sessions and makes engine behaviour testable without a
// real decoder.
type LocalClock struct {
	mu      sync.Mutex
	log     zerolog.Logger
	state   types.MediaClockState
	emit    EventFunc
	stopped chan struct{}
	lastAdv time.Time
	closed  bool
}

// NewLocalClock starts a clock for media of the given duration. emit is
// called from the clock's tick goroutine; callers serialize downstream.
func NewLocalClock(log zerolog.Logger, duration float64, emit EventFunc) *LocalClock {
	c := &LocalClock{
		log: log.With().Str("component", "clock").Logger(),
		state: types.MediaClockState{
			Duration:     duration,
			PlaybackRate: 1,
			Volume:       1,
		},
		emit:    emit,
		stopped: make(chan struct{}),
		lastAdv: time.Now(),
	}
	c.emit(types.PlaybackEvent{Kind: types.EventDuration, Duration: duration})
	go c.run()
	return c
}

func (c *LocalClock) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopped:
			return
		case <-ticker.C:
			if ev, ok := c.advance(); ok {
				c.emit(ev)
			}
		}
	}
}

// advance moves the playhead and reports the tick (or end) to emit.
func (c *LocalClock) advance() (types.PlaybackEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(c.lastAdv).Seconds()
	c.lastAdv = now
	if !c.state.IsPlaying {
		return types.PlaybackEvent{}, false
	}
	c.state.CurrentTime += elapsed * c.state.PlaybackRate
	if c.state.CurrentTime >= c.state.Duration {
		c.state.CurrentTime = c.state.Duration
		c.state.IsPlaying = false
		return types.PlaybackEvent{Kind: types.EventEnded, CurrentTime: c.state.CurrentTime}, true
	}
	return types.PlaybackEvent{Kind: types.EventTick, CurrentTime: c.state.CurrentTime}, true
}

// Play resumes the clock.
func (c *LocalClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAdv = time.Now()
	c.state.IsPlaying = true
}

// Pause halts the clock in place.
func (c *LocalClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsPlaying = false
}

// Seek jumps the playhead, clamped into [0,duration], and echoes a seeked
// event carrying the origin so the engine can apply its loop policy.
func (c *LocalClock) Seek(t float64, origin types.SeekOrigin) {
	c.mu.Lock()
	if t < 0 {
		t = 0
	}
	if t > c.state.Duration {
		t = c.state.Duration
	}
	c.state.CurrentTime = t
	c.lastAdv = time.Now()
	emit := c.emit
	c.mu.Unlock()
	emit(types.PlaybackEvent{Kind: types.EventSeeked, CurrentTime: t, Origin: origin})
}

// SetRate changes playback speed; non-positive rates are ignored.
func (c *LocalClock) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	c.mu.Lock()
	c.state.PlaybackRate = rate
	emit := c.emit
	c.mu.Unlock()
	emit(types.PlaybackEvent{Kind: types.EventRateChanged, Rate: rate})
}

// SetVolume sets volume in [0,1] and the mute flag.
func (c *LocalClock) SetVolume(v float64, muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	c.state.Volume = v
	c.state.Muted = muted
}

// State returns a copy of the clock state.
func (c *LocalClock) State() types.MediaClockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close stops the tick goroutine.
func (c *LocalClock) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.stopped)
	}
	return nil
}

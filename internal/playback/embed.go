package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/loopdrill/loopdrill/internal/types"
)

// EmbedClock drives a remote embedded player through headless Chrome,
// exposing the same transport contract as LocalClock. The engine never
// knows whether it is looping a local file or an embedded video.
type EmbedClock struct {
	mu     sync.Mutex
	log    zerolog.Logger
	emit   EventFunc
	state  types.MediaClockState
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// embedPollInterval is deliberately coarser than the local clock: every
// poll is a DevTools round trip.
const embedPollInterval = 100 * time.Millisecond

// NewEmbedClock opens the embed page for videoID and starts polling the
// player element. The browser context is torn down on Close.
func NewEmbedClock(parent context.Context, log zerolog.Logger, embedURL string, emit EventFunc) (*EmbedClock, error) {
	ctx, cancel := chromedp.NewContext(parent)

	if err := chromedp.Run(ctx,
		chromedp.Navigate(embedURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second), // player bootstrap
	); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open embed page: %w", err)
	}

	c := &EmbedClock{
		log:    log.With().Str("component", "embed-clock").Logger(),
		emit:   emit,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  types.MediaClockState{PlaybackRate: 1, Volume: 1},
	}

	var duration float64
	if err := c.eval(`(document.querySelector('video')||{duration:0}).duration || 0`, &duration); err == nil && duration > 0 {
		c.mu.Lock()
		c.state.Duration = duration
		c.mu.Unlock()
		c.emit(types.PlaybackEvent{Kind: types.EventDuration, Duration: duration})
	}

	go c.poll()
	return c, nil
}

func (c *EmbedClock) poll() {
	defer close(c.done)
	ticker := time.NewTicker(embedPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			var snap struct {
				CurrentTime float64 `json:"currentTime"`
				Duration    float64 `json:"duration"`
				Paused      bool    `json:"paused"`
				Ended       bool    `json:"ended"`
			}
			err := c.eval(`(() => {
				const v = document.querySelector('video');
				if (!v) return {currentTime: 0, duration: 0, paused: true, ended: false};
				return {currentTime: v.currentTime, duration: v.duration || 0, paused: v.paused, ended: v.ended};
			})()`, &snap)
			if err != nil {
				c.log.Debug().Err(err).Msg("embed poll failed")
				continue
			}
			c.mu.Lock()
			durationChanged := snap.Duration > 0 && snap.Duration != c.state.Duration
			if durationChanged {
				c.state.Duration = snap.Duration
			}
			c.state.CurrentTime = snap.CurrentTime
			c.state.IsPlaying = !snap.Paused && !snap.Ended
			c.mu.Unlock()
			if durationChanged {
				c.emit(types.PlaybackEvent{Kind: types.EventDuration, Duration: snap.Duration})
			}
			if snap.Ended {
				c.emit(types.PlaybackEvent{Kind: types.EventEnded, CurrentTime: snap.CurrentTime})
				continue
			}
			c.emit(types.PlaybackEvent{Kind: types.EventTick, CurrentTime: snap.CurrentTime})
		}
	}
}

func (c *EmbedClock) eval(js string, out interface{}) error {
	return chromedp.Run(c.ctx,
		chromedp.Evaluate(js, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true)
		}),
	)
}

func (c *EmbedClock) exec(js string) {
	if err := chromedp.Run(c.ctx, chromedp.Evaluate(js, nil)); err != nil {
		c.log.Warn().Err(err).Msg("embed command failed")
	}
}

// Play starts the remote player.
func (c *EmbedClock) Play() {
	c.exec(`document.querySelector('video')?.play()`)
}

// Pause pauses the remote player.
func (c *EmbedClock) Pause() {
	c.exec(`document.querySelector('video')?.pause()`)
}

// Seek moves the remote playhead and echoes the seeked event locally so
// the engine sees the origin before the next poll lands.
func (c *EmbedClock) Seek(t float64, origin types.SeekOrigin) {
	c.exec(fmt.Sprintf(`(() => { const v = document.querySelector('video'); if (v) v.currentTime = %f; })()`, t))
	c.mu.Lock()
	c.state.CurrentTime = t
	c.mu.Unlock()
	c.emit(types.PlaybackEvent{Kind: types.EventSeeked, CurrentTime: t, Origin: origin})
}

// SetRate changes the remote playback speed.
func (c *EmbedClock) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	c.exec(fmt.Sprintf(`(() => { const v = document.querySelector('video'); if (v) v.playbackRate = %f; })()`, rate))
	c.mu.Lock()
	c.state.PlaybackRate = rate
	c.mu.Unlock()
	c.emit(types.PlaybackEvent{Kind: types.EventRateChanged, Rate: rate})
}

// SetVolume adjusts remote volume and mute.
func (c *EmbedClock) SetVolume(v float64, muted bool) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	c.exec(fmt.Sprintf(`(() => { const el = document.querySelector('video'); if (el) { el.volume = %f; el.muted = %t; } })()`, v, muted))
	c.mu.Lock()
	c.state.Volume = v
	c.state.Muted = muted
	c.mu.Unlock()
}

// State returns a copy of the last polled state.
func (c *EmbedClock) State() types.MediaClockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close tears down the browser context and waits for the poller.
func (c *EmbedClock) Close() error {
	c.cancel()
	<-c.done
	return nil
}

package session

import (
	"context"
	"encoding/json"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loopdrill/loopdrill/internal/engine"
	"github.com/loopdrill/loopdrill/internal/explain"
	"github.com/loopdrill/loopdrill/internal/gesture"
	"github.com/loopdrill/loopdrill/internal/playback"
	"github.com/loopdrill/loopdrill/internal/queue"
	"github.com/loopdrill/loopdrill/internal/timeline"
	"github.com/loopdrill/loopdrill/internal/types"
)

// Library is the persistence surface a session needs: the engine's
// bookmark mutations plus loading the set for a media item.
type Library interface {
	engine.BookmarkStore
	BookmarksFor(mediaKey string) ([]types.Bookmark, error)
}

// Jobs enqueues background work.
type Jobs interface {
	EnqueueJob(job *queue.Job)
}

// Explainer fetches an explanation for a piece of transcript text.
type Explainer interface {
	Explain(text string) (string, error)
}

// Conn is the slice of the websocket connection the session uses;
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// clientMessage is the inbound wire format. Type selects the command;
// the other fields are read per type.
type clientMessage struct {
	Type string `json:"type"`

	MediaKey string  `json:"mediaKey,omitempty"`
	BlobID   string  `json:"blobId,omitempty"`
	Name     string  `json:"name,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	EmbedURL string  `json:"embedUrl,omitempty"`

	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	X2      float64 `json:"x2,omitempty"`
	TimeMs  float64 `json:"timeMs,omitempty"`
	Notches float64 `json:"notches,omitempty"`

	Time       float64 `json:"time,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
	Volume     float64 `json:"volume,omitempty"`
	Muted      bool    `json:"muted,omitempty"`
	On         bool    `json:"on,omitempty"`
	BookmarkID string  `json:"bookmarkId,omitempty"`
	Direction  int     `json:"direction,omitempty"`
	Start      float64 `json:"start,omitempty"`
	End        float64 `json:"end,omitempty"`

	WidthPx float64 `json:"widthPx,omitempty"`
	Zoom    float64 `json:"zoom,omitempty"`
	Center  float64 `json:"center,omitempty"`

	Text       string `json:"text,omitempty"`
	Annotation string `json:"annotation,omitempty"`
}

// viewState mirrors the viewport back to the client.
type viewState struct {
	Zoom        float64 `json:"zoom"`
	CenterTime  float64 `json:"centerTime"`
	ViewStart   float64 `json:"viewStart"`
	VisibleSpan float64 `json:"visibleSpan"`
}

// serverMessage is the outbound wire format.
type serverMessage struct {
	Type       string                    `json:"type"`
	Snapshot   *engine.Snapshot          `json:"snapshot,omitempty"`
	Lanes      []types.LaneAssignment    `json:"lanes,omitempty"`
	View       *viewState                `json:"view,omitempty"`
	Waveform   *types.WaveformData       `json:"waveform,omitempty"`
	Transcript []types.TranscriptSegment `json:"transcript,omitempty"`
	Simulated  bool                      `json:"simulated,omitempty"`
	Time       float64                   `json:"time,omitempty"`
	Candidates []string                  `json:"candidates,omitempty"`
	Explain    *explain.Entry            `json:"explain,omitempty"`
	Notice     string                    `json:"notice,omitempty"`
}

// TransportFactory builds the playback backend for a loaded media item.
// A non-empty embedURL selects the remote embedded-player backend; the
// local clock serves file-backed media.
type TransportFactory func(duration float64, embedURL string, emit playback.EventFunc) (playback.Transport, error)

// Session is one client's event loop. Everything that touches the engine
// or the connection runs on the loop goroutine inside Run.
type Session struct {
	id   string
	log  zerolog.Logger
	hub  *Hub
	lib  Library
	jobs Jobs
	expl Explainer

	eng          *engine.Engine
	interp       *gesture.Interpreter
	transport    playback.Transport
	newTransport TransportFactory
	cache        *explain.Cache

	view    timeline.Viewport
	widthPx float64

	conn Conn
	ops  chan func()
	done chan struct{}
}

// New builds a session. lib, jobs and expl may be nil for reduced setups;
// factory nil means the local self-ticking clock.
func New(log zerolog.Logger, hub *Hub, lib Library, jobs Jobs, expl Explainer, factory TransportFactory) *Session {
	id := uuid.New().String()
	slog := log.With().Str("component", "session").Str("session", id).Logger()
	s := &Session{
		id:           id,
		log:          slog,
		hub:          hub,
		lib:          lib,
		jobs:         jobs,
		expl:         expl,
		interp:       gesture.New(slog),
		newTransport: factory,
		cache:        explain.NewCache(),
		ops:          make(chan func(), 256),
		done:         make(chan struct{}),
	}
	if s.newTransport == nil {
		s.newTransport = func(duration float64, embedURL string, emit playback.EventFunc) (playback.Transport, error) {
			if embedURL != "" {
				return playback.NewEmbedClock(context.Background(), slog, embedURL, emit)
			}
			return playback.NewLocalClock(slog, duration, emit), nil
		}
	}
	s.eng = engine.New(slog, transportProxy{s}, lib)
	return s
}

// transportProxy lets the engine be constructed before any media (and
// therefore any transport) exists.
type transportProxy struct{ s *Session }

func (p transportProxy) Seek(t float64, origin types.SeekOrigin) {
	if tr := p.s.transport; tr != nil {
		tr.Seek(t, origin)
	}
}

func (p transportProxy) SetRate(rate float64) {
	if tr := p.s.transport; tr != nil {
		tr.SetRate(rate)
	}
}

// MediaKey reports the session's loaded media.
func (s *Session) MediaKey() string { return s.eng.MediaKey() }

// Run serves the connection until it closes. It blocks; the caller owns
// the goroutine (the fiber websocket handler does this naturally).
func (s *Session) Run(conn Conn) {
	s.conn = conn
	s.hub.register(s)
	defer func() {
		s.hub.unregister(s)
		if s.transport != nil {
			s.transport.Close()
		}
		close(s.done)
		conn.Close()
		s.log.Info().Msg("session closed")
	}()

	s.log.Info().Msg("session opened")

	msgs := make(chan []byte, 32)
	readErr := make(chan error, 1)
	go func() {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if mt == websocket.TextMessage {
				msgs <- data
			}
		}
	}()

	for {
		select {
		case data := <-msgs:
			s.handleMessage(data)
		case op := <-s.ops:
			op()
		case err := <-readErr:
			s.log.Debug().Err(err).Msg("read loop ended")
			return
		}
	}
}

// post schedules work onto the session loop from another goroutine.
// Drops when the session is gone or the loop is saturated; async results
// are advisory and the next snapshot re-converges the client.
func (s *Session) post(op func()) {
	select {
	case s.ops <- op:
	case <-s.done:
	default:
		s.log.Warn().Msg("session loop saturated; op dropped")
	}
}

func (s *Session) postWaveform(mediaKey string, wf types.WaveformData) {
	s.post(func() {
		if s.eng.MediaKey() != mediaKey {
			return
		}
		s.send(serverMessage{Type: "waveform", Waveform: &wf})
	})
}

func (s *Session) postTranscript(mediaKey string, res *types.TranscriptionResult) {
	s.post(func() {
		if s.eng.MediaKey() != mediaKey {
			return
		}
		s.send(serverMessage{Type: "transcript", Transcript: res.Reassembled, Simulated: res.Simulated})
	})
}

func (s *Session) handleMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn().Err(err).Msg("unparseable client message")
		s.send(serverMessage{Type: "error", Notice: "unparseable message"})
		return
	}

	switch msg.Type {
	case "load_media":
		s.loadMedia(msg)
	case "set_view":
		s.setView(msg)

	case "pointer_down":
		s.applyIntents(s.interp.PointerDown(msg.X, msg.Y, msg.TimeMs))
	case "pointer_move":
		s.applyIntents(s.interp.PointerMove(msg.X, msg.Y))
	case "pointer_up":
		s.applyIntents(s.interp.PointerUp(msg.X, msg.Y, msg.TimeMs))
	case "second_pointer_down":
		s.applyIntents(s.interp.SecondPointerDown(msg.X, msg.X2))
	case "pinch_move":
		s.applyIntents(s.interp.PinchMove(msg.X, msg.X2))
	case "wheel":
		s.applyIntents(s.interp.Wheel(msg.Notches))
	case "cancel_gesture":
		s.interp.Cancel()

	case "play":
		if s.transport != nil {
			s.transport.Play()
		}
	case "pause":
		if s.transport != nil {
			s.transport.Pause()
		}
	case "seek":
		if s.transport != nil {
			s.transport.Seek(msg.Time, types.SeekUser)
		}
	case "set_rate":
		if s.transport != nil {
			s.transport.SetRate(msg.Rate)
		}
	case "set_volume":
		if s.transport != nil {
			s.transport.SetVolume(msg.Volume, msg.Muted)
		}

	case "set_loop":
		s.eng.SetLoopRegion(msg.Start, msg.End)
	case "clear_loop":
		s.eng.ClearLoop()
	case "set_looping":
		s.eng.SetLooping(msg.On)
	case "set_auto_advance":
		s.eng.SetAutoAdvance(msg.On)

	case "bookmark_region":
		s.eng.ToggleBookmarkForRegion(msg.Name)
	case "toggle_bookmark":
		s.eng.ToggleBookmarkAt(msg.Time)
	case "toggle_bookmark_id":
		// Resolution of an ambiguous double-tap: the client picked one.
		s.eng.DeleteBookmark(msg.BookmarkID)
	case "rename_bookmark":
		s.eng.RenameBookmark(msg.BookmarkID, msg.Name)
	case "annotate_bookmark":
		s.eng.Annotate(msg.BookmarkID, msg.Annotation)
	case "delete_bookmark":
		s.eng.DeleteBookmark(msg.BookmarkID)
	case "load_bookmark":
		s.eng.LoadBookmark(msg.BookmarkID)
	case "goto_bookmark":
		dir := msg.Direction
		if dir == 0 {
			dir = 1
		}
		s.eng.GoToBookmark(dir)

	case "explain":
		s.explainText(msg.Text)

	default:
		s.log.Debug().Str("type", msg.Type).Msg("unknown message type")
		s.send(serverMessage{Type: "error", Notice: "unknown message type " + msg.Type})
		return
	}

	s.sendSnapshot()
}

func (s *Session) loadMedia(msg clientMessage) {
	if msg.MediaKey == "" {
		s.send(serverMessage{Type: "error", Notice: "load_media needs a mediaKey"})
		return
	}
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}

	var bookmarks []types.Bookmark
	if s.lib != nil {
		bs, err := s.lib.BookmarksFor(msg.MediaKey)
		if err != nil {
			s.log.Warn().Err(err).Str("media", msg.MediaKey).Msg("bookmark load failed")
		} else {
			bookmarks = bs
		}
	}
	s.eng.SetMedia(msg.MediaKey, bookmarks)
	s.cache.Clear()
	s.view = timeline.NewViewport(msg.Duration, 1, 0)

	mediaKey := msg.MediaKey
	tr, err := s.newTransport(msg.Duration, msg.EmbedURL, func(ev types.PlaybackEvent) {
		s.post(func() {
			if s.eng.MediaKey() != mediaKey {
				return
			}
			s.eng.HandleEvent(ev)
			s.sendSnapshot()
		})
	})
	if err != nil {
		// The media stays loaded so the client can retry with a working
		// backend; transport commands no-op until then.
		s.log.Warn().Err(err).Str("media", mediaKey).Str("embed", msg.EmbedURL).Msg("transport open failed")
		s.send(serverMessage{Type: "error", Notice: "failed to open playback backend: " + err.Error()})
	} else {
		s.transport = tr
	}
	// The backend's own duration event arrives asynchronously; apply the
	// known duration now so gestures right after load see real geometry.
	if msg.Duration > 0 {
		s.eng.HandleEvent(types.PlaybackEvent{Kind: types.EventDuration, Duration: msg.Duration})
	}

	if s.jobs != nil && msg.BlobID != "" {
		s.jobs.EnqueueJob(queue.NewJob(uuid.New().String(), types.JobWaveform, msg.MediaKey, msg.BlobID, msg.Name))
		tj := queue.NewJob(uuid.New().String(), types.JobTranscribe, msg.MediaKey, msg.BlobID, msg.Name)
		tj.Duration = msg.Duration
		s.jobs.EnqueueJob(tj)
	}
}

func (s *Session) setView(msg clientMessage) {
	if msg.WidthPx > 0 {
		s.widthPx = msg.WidthPx
	}
	if msg.Zoom > 0 {
		s.view.Zoom = timeline.ClampZoom(msg.Zoom)
	}
	s.view.CenterTime = msg.Center
}

func (s *Session) applyIntents(intents []gesture.Intent) {
	for _, it := range intents {
		switch it.Kind {
		case gesture.IntentSeek:
			if s.transport != nil {
				s.transport.Seek(it.Time, types.SeekUser)
			}
		case gesture.IntentLoopSelect:
			s.eng.SetLoopRegion(it.Start, it.End)
		case gesture.IntentResize:
			s.eng.ResizeBookmark(it.BookmarkID, string(it.Edge), it.Value)
		case gesture.IntentToggleBookmark:
			s.eng.ToggleBookmarkAt(it.Time)
		case gesture.IntentAmbiguousTap:
			s.send(serverMessage{Type: "ambiguous_tap", Time: it.Time, Candidates: it.Candidates})
		case gesture.IntentZoom:
			s.view.Zoom = it.Zoom
		}
	}
}

func (s *Session) explainText(text string) {
	if text == "" {
		return
	}
	if e, ok := s.cache.Get(text); ok && e.State != explain.StateFailed {
		s.send(serverMessage{Type: "explain", Explain: &e})
		return
	}
	s.cache.MarkLoading(text)
	e, _ := s.cache.Get(text)
	s.send(serverMessage{Type: "explain", Explain: &e})

	if s.expl == nil {
		s.cache.Fail(text, "no explainer configured")
		e, _ := s.cache.Get(text)
		s.send(serverMessage{Type: "explain", Explain: &e})
		return
	}
	go func() {
		result, err := s.expl.Explain(text)
		s.post(func() {
			if err != nil {
				s.cache.Fail(text, err.Error())
			} else {
				s.cache.Put(text, result)
			}
			e, _ := s.cache.Get(text)
			s.send(serverMessage{Type: "explain", Explain: &e})
		})
	}()
}

// sendSnapshot pushes the engine state plus freshly packed lanes, and
// refreshes the interpreter's hit-test geometry from the same data.
func (s *Session) sendSnapshot() {
	snap := s.eng.Snapshot()
	s.view.Duration = snap.Clock.Duration

	intervals := make([]timeline.Interval, len(snap.Bookmarks))
	for i, b := range snap.Bookmarks {
		intervals[i] = timeline.Interval{ID: b.ID, Start: b.Start, End: b.End}
	}
	lanes := timeline.PackLanes(intervals)

	laneOf := make(map[string]int, len(lanes))
	assignments := make([]types.LaneAssignment, len(lanes))
	for i, l := range lanes {
		laneOf[l.ID] = l.Lane
		assignments[i] = types.LaneAssignment{BookmarkID: l.ID, Lane: l.Lane}
	}
	rects := make([]gesture.Rect, len(snap.Bookmarks))
	for i, b := range snap.Bookmarks {
		rects[i] = gesture.Rect{BookmarkID: b.ID, Start: b.Start, End: b.End, Lane: laneOf[b.ID]}
	}
	s.interp.SetView(s.view, s.widthPx, rects)

	s.send(serverMessage{
		Type:     "snapshot",
		Snapshot: &snap,
		Lanes:    assignments,
		View: &viewState{
			Zoom:        s.view.Zoom,
			CenterTime:  s.view.CenterTime,
			ViewStart:   s.view.ViewStart(),
			VisibleSpan: s.view.VisibleDuration(),
		},
	})
}

func (s *Session) send(msg serverMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal failed")
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Debug().Err(err).Msg("write failed")
	}
}

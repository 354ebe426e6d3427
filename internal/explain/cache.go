// Package explain holds fetched explanations for transcript text. It
// replaces what would otherwise be an ambient module-level map with an
// injectable cache that notifies subscribers on change, so the engine and
// UI stay decoupled and testable.
package explain

import "sync"

// State of one explanation entry.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Entry is the cached explanation for one piece of text.
type Entry struct {
	Text        string `json:"text"`
	Explanation string `json:"explanation,omitempty"`
	State       State  `json:"state"`
	Err         string `json:"error,omitempty"`
}

// Listener receives the entry after every mutation of its key.
type Listener func(Entry)

// Cache is safe for concurrent use. Listeners run synchronously on the
// mutating goroutine; keep them cheap.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]Entry
	listeners map[int]Listener
	nextID    int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries:   make(map[string]Entry),
		listeners: make(map[int]Listener),
	}
}

// Get returns the entry for text, if any.
func (c *Cache) Get(text string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[text]
	return e, ok
}

// MarkLoading records that a fetch is in flight for text.
func (c *Cache) MarkLoading(text string) {
	c.set(Entry{Text: text, State: StateLoading})
}

// Put stores a finished explanation.
func (c *Cache) Put(text, explanation string) {
	c.set(Entry{Text: text, Explanation: explanation, State: StateReady})
}

// Fail records a fetch failure; the UI shows a dismissible notice and the
// entry can be retried.
func (c *Cache) Fail(text string, errMsg string) {
	c.set(Entry{Text: text, State: StateFailed, Err: errMsg})
}

func (c *Cache) set(e Entry) {
	c.mu.Lock()
	c.entries[e.Text] = e
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.Unlock()
	for _, l := range ls {
		l(e)
	}
}

// Subscribe registers a listener and returns an unsubscribe func.
func (c *Cache) Subscribe(l Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Clear drops all entries, typically on media change.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

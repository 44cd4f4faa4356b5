package webview

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the default number of event frames queued per
// connection before further frames are dropped.
const DefaultBufferSize = 256

// Hub tracks live connections and the threads they subscribe to, and fans
// event frames out to them. It is safe for concurrent use.
type Hub struct {
	bufferSize int

	mu      sync.RWMutex
	conns   map[string]*Conn
	threads map[string]map[string]*Conn // thread → conn id → conn

	delivered atomic.Int64
	dropped   atomic.Int64
}

// HubStats is a snapshot of hub counters.
type HubStats struct {
	Connections int   `json:"connections"`
	Threads     int   `json:"threads"`
	Delivered   int64 `json:"delivered"`
	Dropped     int64 `json:"dropped"`
}

// NewHub creates an empty hub. A bufferSize below 1 selects
// DefaultBufferSize.
func NewHub(bufferSize int) *Hub {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		bufferSize: bufferSize,
		conns:      make(map[string]*Conn),
		threads:    make(map[string]map[string]*Conn),
	}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
}

// remove unsubscribes the connection from every thread and closes it.
func (h *Hub) remove(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
		for thread, subs := range h.threads {
			delete(subs, connID)
			if len(subs) == 0 {
				delete(h.threads, thread)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		c.close()
	}
}

// Get returns a live connection.
func (h *Hub) Get(connID string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	return c, ok
}

// Subscribe adds the connection to thread. It reports false for unknown
// connections.
func (h *Hub) Subscribe(connID, thread string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	subs, ok := h.threads[thread]
	if !ok {
		subs = make(map[string]*Conn)
		h.threads[thread] = subs
	}
	subs[connID] = c
	c.addThread(thread)
	return true
}

// Unsubscribe removes the connection from thread.
func (h *Hub) Unsubscribe(connID, thread string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.threads[thread]
	if !ok {
		return
	}
	if c, ok := subs[connID]; ok {
		c.removeThread(thread)
		delete(subs, connID)
	}
	if len(subs) == 0 {
		delete(h.threads, thread)
	}
}

// Subscribers returns the number of connections subscribed to thread.
func (h *Hub) Subscribers(thread string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.threads[thread])
}

// Publish queues f for every connection subscribed to thread and returns
// how many accepted it.
func (h *Hub) Publish(thread string, f *Frame) int {
	h.mu.RLock()
	subs := h.threads[thread]
	targets := make([]*Conn, 0, len(subs))
	for _, c := range subs {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	return h.deliver(targets, f)
}

// SendTo queues f for a single connection and returns 1 if it accepted
// it, 0 otherwise.
func (h *Hub) SendTo(connID string, f *Frame) int {
	c, ok := h.Get(connID)
	if !ok {
		return 0
	}
	return h.deliver([]*Conn{c}, f)
}

func (h *Hub) deliver(targets []*Conn, f *Frame) int {
	n := 0
	for _, c := range targets {
		if c.enqueue(f) {
			n++
		} else {
			h.dropped.Add(1)
		}
	}
	h.delivered.Add(int64(n))
	return n
}

// Close closes every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*Conn)
	h.threads = make(map[string]map[string]*Conn)
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// Stats returns the hub counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		Connections: len(h.conns),
		Threads:     len(h.threads),
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
	}
}

package webview

import (
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws/wsutil"
)

// Conn is the server side of one authenticated client connection.
type Conn struct {
	ID          string
	Identity    *Identity
	Codec       Codec
	ConnectedAt time.Time

	lastActivity atomic.Value // time.Time

	nc      net.Conn
	writeMu sync.Mutex

	// out queues event frames for the write loop.
	out chan *Frame

	mu      sync.Mutex
	closed  bool
	threads map[string]struct{}
}

func newConn(connID string, identity *Identity, codec Codec, nc net.Conn, buffer int) *Conn {
	now := time.Now().UTC()
	c := &Conn{
		ID:          connID,
		Identity:    identity,
		Codec:       codec,
		ConnectedAt: now,
		nc:          nc,
		out:         make(chan *Frame, buffer),
		threads:     make(map[string]struct{}),
	}
	c.lastActivity.Store(now)
	return c
}

// Touch records client activity.
func (c *Conn) Touch() { c.lastActivity.Store(time.Now().UTC()) }

// LastActivity returns when the client last sent a frame.
func (c *Conn) LastActivity() time.Time { return c.lastActivity.Load().(time.Time) }

// Threads returns the subscribed threads, sorted.
func (c *Conn) Threads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.threads))
	for t := range c.threads {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// enqueue queues f for the write loop without blocking. It reports false
// when the connection is closed or its buffer is full.
func (c *Conn) enqueue(f *Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- f:
		return true
	default:
		return false
	}
}

// write encodes f with the connection's codec and writes it.
func (c *Conn) write(f *Frame) error {
	data, err := c.Codec.Encode(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.nc, c.Codec.OpCode(), data)
}

// writeLoop drains queued frames until the connection closes.
func (c *Conn) writeLoop() {
	for f := range c.out {
		if err := c.write(f); err != nil {
			c.close()
			return
		}
	}
}

// close stops the write loop and closes the network connection. It is
// safe to call more than once.
func (c *Conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.out)
	c.mu.Unlock()

	if c.nc != nil {
		_ = c.nc.Close()
	}
}

func (c *Conn) addThread(thread string) {
	c.mu.Lock()
	c.threads[thread] = struct{}{}
	c.mu.Unlock()
}

func (c *Conn) removeThread(thread string) {
	c.mu.Lock()
	delete(c.threads, thread)
	c.mu.Unlock()
}

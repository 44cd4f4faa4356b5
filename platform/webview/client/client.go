// Package client connects Go programs to a webview endpoint, e.g. for
// end-to-end tests of a bot or a terminal chat front end.
//
//	c, err := client.Dial(ctx, "ws://localhost:8080/webview", client.WithToken(token))
//	defer c.Close()
//	err = c.Subscribe(ctx, "support-42")
//	err = c.Send(ctx, "support-42", "hello")
//	for f := range c.Events() {
//		fmt.Println(f.Method, string(f.Data))
//	}
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/xraph/parley/platform/webview"
)

// ErrClosed is returned by requests on a closed client.
var ErrClosed = errors.New("webview/client: closed")

// Client is a webview connection.
type Client struct {
	token       string
	format      string
	logger      *slog.Logger
	authTimeout time.Duration
	bufferSize  int

	conn      net.Conn
	codec     webview.Codec
	sessionID string
	subject   string

	writeMu sync.Mutex
	closed  atomic.Bool
	done    chan struct{}

	pending sync.Map // frame id → chan *webview.Frame
	events  chan *webview.Frame
}

// Dial connects to url and authenticates.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		format:      webview.CodecNameJSON,
		logger:      slog.Default(),
		authTimeout: 10 * time.Second,
		bufferSize:  64,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	codec, err := webview.CodecByName(c.format)
	if err != nil {
		return nil, err
	}
	c.codec = codec
	c.events = make(chan *webview.Frame, c.bufferSize)

	if err := c.connect(ctx, url); err != nil {
		return nil, fmt.Errorf("webview/client: dial: %w", err)
	}
	go c.readLoop()
	return c, nil
}

// connect opens the socket and completes the JSON auth exchange before
// the read loop starts.
func (c *Client) connect(ctx context.Context, url string) error {
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	auth, err := webview.NewRequestFrame(uuid.NewString(), webview.MethodAuth, webview.AuthRequest{Token: c.token, Format: c.format})
	if err != nil {
		_ = conn.Close()
		return err
	}
	raw, err := json.Marshal(auth)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := wsutil.WriteClientText(conn, raw); err != nil {
		_ = conn.Close()
		return fmt.Errorf("write auth frame: %w", err)
	}

	deadline := time.Now().Add(c.authTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	data, err := wsutil.ReadServerText(conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("read auth response: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var resp webview.Frame
	if err := json.Unmarshal(data, &resp); err != nil {
		_ = conn.Close()
		return fmt.Errorf("decode auth response: %w", err)
	}
	if resp.Type == webview.FrameErr {
		_ = conn.Close()
		if resp.Error != nil {
			return fmt.Errorf("auth failed: %w", resp.Error)
		}
		return errors.New("auth failed")
	}
	var ar webview.AuthResponse
	if err := resp.Decode(&ar); err != nil {
		_ = conn.Close()
		return fmt.Errorf("decode auth response: %w", err)
	}

	c.conn = conn
	c.sessionID = ar.SessionID
	c.subject = ar.Subject
	c.logger.Info("webview client connected",
		slog.String("session_id", c.sessionID),
		slog.String("format", ar.Format),
	)
	return nil
}

// readLoop routes replies to their requests and events to Events. It
// closes Events when the connection ends.
func (c *Client) readLoop() {
	defer close(c.events)
	for {
		data, _, err := wsutil.ReadServerData(c.conn)
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warn("webview client read failed", slog.String("error", err.Error()))
				c.shutdown()
			}
			return
		}
		f, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Warn("webview client: invalid frame", slog.String("error", err.Error()))
			continue
		}

		switch f.Type {
		case webview.FrameResponse, webview.FrameErr, webview.FramePong:
			if v, ok := c.pending.Load(f.CorrelID); ok {
				select {
				case v.(chan *webview.Frame) <- f:
				default:
				}
			}
		case webview.FrameEvent:
			select {
			case c.events <- f:
			case <-c.done:
				return
			}
		}
	}
}

// request sends a frame and waits for its correlated reply.
func (c *Client) request(ctx context.Context, f *webview.Frame) (*webview.Frame, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	ch := make(chan *webview.Frame, 1)
	c.pending.Store(f.ID, ch)
	defer c.pending.Delete(f.ID)

	if err := c.write(f); err != nil {
		return nil, err
	}
	select {
	case resp := <-ch:
		if resp.Type == webview.FrameErr {
			if resp.Error != nil {
				return nil, fmt.Errorf("webview/client: %s: %w", f.Method, resp.Error)
			}
			return nil, fmt.Errorf("webview/client: %s failed", f.Method)
		}
		return resp, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) call(ctx context.Context, method, thread string, data any) (*webview.Frame, error) {
	f, err := webview.NewRequestFrame(uuid.NewString(), method, data)
	if err != nil {
		return nil, err
	}
	f.Thread = thread
	return c.request(ctx, f)
}

func (c *Client) write(f *webview.Frame) error {
	data, err := c.codec.Encode(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteClientMessage(c.conn, c.codec.OpCode(), data)
}

// SessionID returns the connection id assigned by the server. Render to
// webview.Connection{ID: SessionID()} to reach only this client.
func (c *Client) SessionID() string { return c.sessionID }

// Subject returns the authenticated subject.
func (c *Client) Subject() string { return c.subject }

// Events returns the event frames published to this connection. The
// channel is closed when the connection ends.
func (c *Client) Events() <-chan *webview.Frame { return c.events }

// Close closes the connection.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)
	return c.conn.Close()
}

func (c *Client) shutdown() {
	if !c.closed.Swap(true) {
		close(c.done)
		_ = c.conn.Close()
	}
}

package webview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/parley/id"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/platform"
)

// DefaultAuthTimeout bounds the wait for a new connection's auth frame.
const DefaultAuthTimeout = 10 * time.Second

// Server upgrades HTTP requests to WebSocket connections, authenticates
// them, and turns client frames into platform events.
type Server struct {
	hub         *Hub
	handler     platform.Handler
	auth        Authenticator
	authTimeout time.Duration
	logger      *slog.Logger
}

// NewServer returns a server registering connections in hub and
// delivering events to h. A nil auth accepts every client.
func NewServer(hub *Hub, h platform.Handler, auth Authenticator, logger *slog.Logger) *Server {
	if auth == nil {
		auth = NoopAuthenticator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{hub: hub, handler: h, auth: auth, authTimeout: DefaultAuthTimeout, logger: logger}
}

// ServeHTTP implements http.Handler. It blocks for the lifetime of the
// connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	nc, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("webview upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}
	defer nc.Close()

	if err := s.serve(r.Context(), nc); err != nil {
		s.logger.Warn("webview connection ended",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) serve(ctx context.Context, nc net.Conn) error {
	c, err := s.authenticate(ctx, nc)
	if err != nil {
		return err
	}

	s.hub.add(c)
	go c.writeLoop()
	s.logger.Info("webview connected",
		slog.String("conn_id", c.ID),
		slog.String("subject", c.Identity.Subject),
		slog.String("codec", c.Codec.Name()),
	)
	s.emit(ctx, c, "connect")

	defer func() {
		s.hub.remove(c.ID)
		s.emit(context.WithoutCancel(ctx), c, "disconnect")
		s.logger.Info("webview disconnected", slog.String("conn_id", c.ID))
	}()

	for {
		data, _, err := wsutil.ReadClientData(nc)
		if err != nil {
			// Closed by the client or by Hub.Close.
			return nil
		}
		c.Touch()

		frame, err := c.Codec.Decode(data)
		if err != nil {
			if werr := c.write(NewErrorFrame("", ErrCodeBadRequest, "invalid frame: "+err.Error())); werr != nil {
				return werr
			}
			continue
		}
		if resp := s.handle(ctx, c, frame); resp != nil {
			if err := c.write(resp); err != nil {
				return err
			}
		}
	}
}

// authenticate reads the auth frame, which is always JSON, and answers it
// in JSON before switching to the negotiated codec.
func (s *Server) authenticate(ctx context.Context, nc net.Conn) (*Conn, error) {
	_ = nc.SetReadDeadline(time.Now().Add(s.authTimeout))
	data, _, err := wsutil.ReadClientData(nc)
	if err != nil {
		return nil, fmt.Errorf("webview: read auth frame: %w", err)
	}
	_ = nc.SetReadDeadline(time.Time{})

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		_ = writeJSON(nc, NewErrorFrame("", ErrCodeBadRequest, "invalid auth frame"))
		return nil, fmt.Errorf("webview: decode auth frame: %w", err)
	}
	if f.Method != MethodAuth {
		_ = writeJSON(nc, NewErrorFrame(f.ID, ErrCodeBadRequest, "first frame must be auth"))
		return nil, fmt.Errorf("webview: expected auth frame, got %q", f.Method)
	}

	var req AuthRequest
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &req); err != nil {
			_ = writeJSON(nc, NewErrorFrame(f.ID, ErrCodeBadRequest, "invalid auth data"))
			return nil, fmt.Errorf("webview: decode auth data: %w", err)
		}
	}
	token := req.Token
	if token == "" {
		token = f.Token
	}

	identity, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		_ = writeJSON(nc, NewErrorFrame(f.ID, ErrCodeUnauthorized, "authentication failed"))
		return nil, err
	}
	codec, err := CodecByName(req.Format)
	if err != nil {
		_ = writeJSON(nc, NewErrorFrame(f.ID, ErrCodeBadRequest, err.Error()))
		return nil, err
	}

	c := newConn(id.NewConnectionID().String(), identity, codec, nc, s.hub.bufferSize)
	resp := mustResponseFrame(f.ID, AuthResponse{Format: codec.Name(), SessionID: c.ID, Subject: identity.Subject})
	if err := writeJSON(nc, resp); err != nil {
		return nil, fmt.Errorf("webview: write auth response: %w", err)
	}
	return c, nil
}

// handle processes one client frame and returns the reply, if any.
func (s *Server) handle(ctx context.Context, c *Conn, f *Frame) *Frame {
	if f.Type == FramePing {
		return &Frame{ID: id.NewFrameID().String(), Type: FramePong, CorrelID: f.ID, Timestamp: time.Now().UTC()}
	}
	if f.Method == "" {
		return NewErrorFrame(f.ID, ErrCodeBadRequest, "missing method")
	}
	if scope := RequiredScope(f.Method); scope != "" && !c.Identity.HasScope(scope) {
		return NewErrorFrame(f.ID, ErrCodeForbidden, "insufficient permissions")
	}

	switch f.Method {
	case MethodSubscribe:
		if f.Thread == "" {
			return NewErrorFrame(f.ID, ErrCodeBadRequest, "thread is required")
		}
		s.hub.Subscribe(c.ID, f.Thread)
		return mustResponseFrame(f.ID, SubscribeResponse{Thread: f.Thread, Subscribers: s.hub.Subscribers(f.Thread)})

	case MethodUnsubscribe:
		if f.Thread == "" {
			return NewErrorFrame(f.ID, ErrCodeBadRequest, "thread is required")
		}
		s.hub.Unsubscribe(c.ID, f.Thread)
		return mustResponseFrame(f.ID, SubscribeResponse{Thread: f.Thread, Subscribers: s.hub.Subscribers(f.Thread)})

	case MethodMessage, MethodCallback:
		var msg InboundMessage
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &msg); err != nil {
				return NewErrorFrame(f.ID, ErrCodeBadRequest, "invalid message: "+err.Error())
			}
		}
		var target job.Target = Connection{ID: c.ID}
		if f.Thread != "" {
			target = Thread{ID: f.Thread}
		}
		typ, text := "message", msg.Text
		if f.Method == MethodCallback {
			typ, text = "callback", msg.Value
		}
		ev := platform.NewEvent(Platform, typ, target)
		ev.ID = f.ID
		ev.UserID = c.Identity.Subject
		ev.Text = text
		ev.Raw = f.Data
		if err := s.handler.HandleEvent(ctx, ev); err != nil {
			s.logger.Error("event handler failed",
				slog.String("platform", Platform),
				slog.String("conn_id", c.ID),
				slog.String("type", typ),
				slog.String("error", err.Error()),
			)
			return NewErrorFrame(f.ID, ErrCodeInternal, "handler failed")
		}
		return mustResponseFrame(f.ID, map[string]string{"id": f.ID})

	default:
		return NewErrorFrame(f.ID, ErrCodeMethodNotFound, "unknown method: "+f.Method)
	}
}

// emit reports a connection lifecycle event addressed to the connection.
func (s *Server) emit(ctx context.Context, c *Conn, typ string) {
	ev := platform.NewEvent(Platform, typ, Connection{ID: c.ID})
	ev.ID = c.ID
	ev.UserID = c.Identity.Subject
	if err := s.handler.HandleEvent(ctx, ev); err != nil {
		s.logger.Error("event handler failed",
			slog.String("platform", Platform),
			slog.String("conn_id", c.ID),
			slog.String("type", typ),
			slog.String("error", err.Error()),
		)
	}
}

func writeJSON(nc net.Conn, f *Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return wsutil.WriteServerText(nc, data)
}

package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/platform/webview"
	"github.com/xraph/parley/render"
)

type recorder struct {
	events chan platform.Event

	mu   sync.Mutex
	fail error
}

func (r *recorder) HandleEvent(_ context.Context, ev platform.Event) error {
	r.mu.Lock()
	err := r.fail
	r.mu.Unlock()
	r.events <- ev
	return err
}

func (r *recorder) failWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *recorder) next(t *testing.T, typ string) platform.Event {
	t.Helper()
	for {
		select {
		case ev := <-r.events:
			if ev.Type == typ {
				return ev
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s event", typ)
		}
	}
}

type harness struct {
	bot *webview.Bot
	rec *recorder
	url string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bot := webview.New(webview.WithAuthenticator(webview.NewAPIKeyAuthenticator(
		webview.APIKey{Token: "rw", Identity: webview.Identity{Subject: "alice"}},
		webview.APIKey{Token: "ro", Identity: webview.Identity{Subject: "bob", Scopes: []string{webview.ScopeRead}}},
	)))
	rec := &recorder{events: make(chan platform.Event, 32)}
	srv := httptest.NewServer(bot.Receiver(rec))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = bot.Stop(context.Background()) })
	return &harness{bot: bot, rec: rec, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (h *harness) dial(t *testing.T, opts ...Option) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, h.url, append([]Option{WithToken("rw")}, opts...)...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func nextEvent(t *testing.T, c *Client) *webview.Frame {
	t.Helper()
	select {
	case f, ok := <-c.Events():
		if !ok {
			t.Fatal("events closed")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return nil
	}
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRenderReachesSubscribersInOrder(t *testing.T) {
	for _, format := range []string{webview.CodecNameJSON, webview.CodecNameMsgpack} {
		t.Run(format, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			c := h.dial(t, WithFormat(format))

			if n, err := c.Subscribe(ctx, "support"); err != nil || n != 1 {
				t.Fatalf("Subscribe = %d, %v", n, err)
			}
			res, err := h.bot.Render(ctx, webview.Thread{ID: "support"}, render.Fragment(
				render.Text("one"),
				render.Unit(webview.Card{Title: "two"}),
				render.Break(),
				render.Text("three"),
			))
			if err != nil {
				t.Fatal(err)
			}
			if !res.Success || len(res.Batch) != 3 {
				t.Fatalf("result = %+v", res)
			}

			want := []string{`"one"`, `"two"`, `"three"`}
			for i, w := range want {
				f := nextEvent(t, c)
				if f.Thread != "support" || !strings.Contains(string(f.Data), w) {
					t.Fatalf("event %d = %s %s", i, f.Method, f.Data)
				}
			}
		})
	}
}

func TestInboundEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.dial(t)

	connect := h.rec.next(t, "connect")
	if connect.UserID != "alice" || connect.Target != (webview.Connection{ID: c.SessionID()}) {
		t.Fatalf("connect = %+v", connect)
	}

	if err := c.Send(ctx, "support", "hi there"); err != nil {
		t.Fatal(err)
	}
	msg := h.rec.next(t, "message")
	if msg.Text != "hi there" || msg.Target != (webview.Thread{ID: "support"}) || msg.UserID != "alice" {
		t.Fatalf("message = %+v", msg)
	}

	if err := c.Press(ctx, "", "yes"); err != nil {
		t.Fatal(err)
	}
	cb := h.rec.next(t, "callback")
	if cb.Text != "yes" || cb.Target != (webview.Connection{ID: c.SessionID()}) {
		t.Fatalf("callback = %+v", cb)
	}

	_ = c.Close()
	h.rec.next(t, "disconnect")
}

func TestReplyToConnection(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)
	other := h.dial(t)

	if _, err := h.bot.Render(context.Background(), webview.Connection{ID: c.SessionID()}, render.Text("private")); err != nil {
		t.Fatal(err)
	}
	if f := nextEvent(t, c); !strings.Contains(string(f.Data), "private") {
		t.Fatalf("event = %s", f.Data)
	}
	select {
	case f := <-other.Events():
		t.Fatalf("other received %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAuthFailures(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := Dial(ctx, h.url, WithToken("wrong")); err == nil || !strings.Contains(err.Error(), "authentication failed") {
		t.Fatalf("bad token err = %v", err)
	}
	if _, err := Dial(ctx, h.url, WithToken("rw"), WithFormat("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestReadOnlyClientCannotSend(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, WithToken("ro"))

	if _, err := c.Subscribe(context.Background(), "t"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	err := c.Send(context.Background(), "t", "hello")
	var detail *webview.ErrorDetail
	if !errors.As(err, &detail) || detail.Code != webview.ErrCodeForbidden {
		t.Fatalf("err = %v", err)
	}
}

func TestHandlerErrorIsReported(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)
	h.rec.next(t, "connect")
	h.rec.failWith(errors.New("boom"))

	err := c.Send(context.Background(), "t", "hello")
	var detail *webview.ErrorDetail
	if !errors.As(err, &detail) || detail.Code != webview.ErrCodeInternal {
		t.Fatalf("err = %v", err)
	}
}

func TestPing(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t, WithFormat(webview.CodecNameMsgpack))

	if _, err := c.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestBotStopClosesClients(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)
	if _, err := c.Subscribe(context.Background(), "t"); err != nil {
		t.Fatal(err)
	}

	if err := h.bot.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case _, ok := <-c.Events():
		if ok {
			t.Fatal("unexpected event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events not closed after Stop")
	}
	if err := c.Send(context.Background(), "t", "late"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after close = %v", err)
	}
}

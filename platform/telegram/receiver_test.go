package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xraph/parley/job"
	"github.com/xraph/parley/platform"
)

func jobRequest(method, text string) job.Request {
	return job.Request{Method: method, Params: map[string]any{"text": text}}
}

type captured struct{ events []platform.Event }

func (c *captured) HandleEvent(_ context.Context, ev platform.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func post(h http.Handler, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReceiver_Message(t *testing.T) {
	c := &captured{}
	rc := NewReceiver(c, "hook-secret", nil)

	rec := post(rc, `{"update_id":10,"message":{"message_id":5,"from":{"id":99},"chat":{"id":42,"type":"private"},"text":"/start"}}`, "hook-secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(c.events) != 1 {
		t.Fatalf("events = %d", len(c.events))
	}
	ev := c.events[0]
	if ev.Type != "message" || ev.Text != "/start" || ev.UserID != "99" || ev.ID != "5" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Target != ChatID(42) || ev.ConversationID != "telegram:42" {
		t.Fatalf("target = %+v", ev.Target)
	}
}

func TestReceiver_CallbackAndMedia(t *testing.T) {
	c := &captured{}
	rc := NewReceiver(c, "", nil)

	post(rc, `{"update_id":11,"callback_query":{"id":"cb1","from":{"id":7},"message":{"message_id":1,"chat":{"id":3}},"data":"ping"}}`, "")
	post(rc, `{"update_id":12,"message":{"message_id":2,"chat":{"id":3},"caption":"look","photo":[{"file_id":"f"}]}}`, "")
	post(rc, `{"update_id":13,"poll":{}}`, "")

	if len(c.events) != 2 {
		t.Fatalf("events = %d", len(c.events))
	}
	if c.events[0].Type != "callback" || c.events[0].Text != "ping" || c.events[0].Target != ChatID(3) {
		t.Fatalf("callback = %+v", c.events[0])
	}
	if c.events[1].Type != "media" || c.events[1].Text != "look" {
		t.Fatalf("media = %+v", c.events[1])
	}
}

func TestReceiver_Rejects(t *testing.T) {
	c := &captured{}
	rc := NewReceiver(c, "hook-secret", nil)

	if rec := post(rc, `{}`, "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad secret status = %d", rec.Code)
	}
	if rec := post(rc, `{not json`, "hook-secret"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	rc.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", rec.Code)
	}
	if len(c.events) != 0 {
		t.Fatalf("events = %d", len(c.events))
	}
}

package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xraph/parley/platform"
)

const appSecret = "app-secret"

type captured struct{ events []platform.Event }

func (c *captured) HandleEvent(_ context.Context, ev platform.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func TestReceiver_VerifyHandshake(t *testing.T) {
	rc := NewReceiver(&captured{}, appSecret, "verify-me", nil)

	rec := httptest.NewRecorder()
	rc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "12345" {
		t.Fatalf("handshake = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	rc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong token status = %d", rec.Code)
	}
}

func TestReceiver_Events(t *testing.T) {
	c := &captured{}
	rc := NewReceiver(c, appSecret, "", nil)

	payload := `{"object":"whatsapp_business_account","entry":[{"id":"waba","changes":[{"field":"messages","value":{
		"metadata":{"phone_number_id":"pn1"},
		"messages":[
			{"from":"15550001","id":"wamid.1","type":"text","text":{"body":"hello"}},
			{"from":"15550001","id":"wamid.2","type":"interactive","interactive":{"button_reply":{"id":"yes","title":"Yes"}}},
			{"from":"15550001","id":"wamid.3","type":"image","image":{"id":"m1","caption":"look"}}
		],
		"statuses":[{"id":"wamid.out","status":"delivered","recipient_id":"15550001"}]
	}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(payload))
	req.Header.Set("X-Hub-Signature-256", platform.SignHex([]byte(appSecret), []byte(payload)))
	rec := httptest.NewRecorder()
	rc.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := []struct{ typ, text string }{
		{"message", "hello"}, {"callback", "yes"}, {"media", "look"}, {"status", "delivered"},
	}
	if len(c.events) != len(want) {
		t.Fatalf("events = %+v", c.events)
	}
	for i, w := range want {
		if c.events[i].Type != w.typ || c.events[i].Text != w.text {
			t.Errorf("event %d = %s %q, want %s %q", i, c.events[i].Type, c.events[i].Text, w.typ, w.text)
		}
	}
	if c.events[0].Target != chat {
		t.Fatalf("target = %+v", c.events[0].Target)
	}
}

func TestReceiver_RejectsBadSignature(t *testing.T) {
	c := &captured{}
	rc := NewReceiver(c, appSecret, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(`{}`))
	req.Header.Set("X-Hub-Signature-256", platform.SignHex([]byte("other"), []byte(`{}`)))
	rec := httptest.NewRecorder()
	rc.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || len(c.events) != 0 {
		t.Fatalf("status = %d events = %d", rec.Code, len(c.events))
	}
}

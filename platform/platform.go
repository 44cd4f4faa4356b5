// Package platform holds what the platform bots share: the inbound event
// model delivered by webhook receivers, the platform API error type
// understood by the retry middleware, and signature helpers.
//
// Each subpackage (telegram, twitter, whatsapp, webview) implements a
// worker.Transport, a job factory that turns rendered segments into jobs,
// a Bot that wires both into an engine.Engine, and a Receiver.
package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/xraph/parley/job"
	"github.com/xraph/parley/render"
)

// Event is one inbound message or interaction received from a platform.
type Event struct {
	Platform string `json:"platform"`

	// Type is a platform-neutral kind: "message", "callback", "media",
	// "connect", "disconnect", or a platform-specific value.
	Type string `json:"type"`

	// ID is the platform's identifier for the event or message.
	ID string `json:"id,omitempty"`

	// Target addresses the conversation the event belongs to, so a
	// handler can reply with Bot.Render.
	Target job.Target `json:"-"`

	// ConversationID is Target's UID.
	ConversationID string `json:"conversation_id,omitempty"`

	UserID string `json:"user_id,omitempty"`
	Text   string `json:"text,omitempty"`

	// Raw is the platform payload the event was decoded from.
	Raw json.RawMessage `json:"raw,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// Handler consumes inbound events. An error is logged by the receiver and
// does not change the webhook response; platforms retry deliveries that
// were not acknowledged, which would duplicate events.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Bot is the surface every platform bot offers.
type Bot interface {
	// Platform returns the platform name, e.g. "telegram".
	Platform() string

	// Start starts the bot's worker.
	Start(ctx context.Context) error

	// Stop stops the worker and fails every unsent job.
	Stop(ctx context.Context) error

	// Send renders node and dispatches it to target. It returns nil when
	// the node renders to nothing.
	Send(ctx context.Context, target job.Target, node render.Node) (*job.BatchResult, error)

	// Receiver returns the inbound webhook handler delivering events to h.
	Receiver(h Handler) http.Handler
}

// NewEvent returns an event stamped with the current time.
func NewEvent(platform, typ string, target job.Target) Event {
	ev := Event{Platform: platform, Type: typ, Target: target, ReceivedAt: time.Now().UTC()}
	if target != nil {
		ev.ConversationID = target.UID()
	}
	return ev
}

package webview

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/xraph/parley/id"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the envelope of every message exchanged with a client.
type Frame struct {
	ID   string    `json:"id" msgpack:"id"`
	Type FrameType `json:"type" msgpack:"type"`

	// Method names the operation of a request frame, or the kind of
	// content an event frame carries ("message", "image", ...).
	Method string `json:"method,omitempty" msgpack:"method,omitempty"`

	// CorrelID links a response or pong to its request.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Token carries credentials on the auth frame.
	Token string `json:"token,omitempty" msgpack:"token,omitempty"`

	// Thread scopes subscribe, unsubscribe, message, and event frames.
	Thread string `json:"thread,omitempty" msgpack:"thread,omitempty"`

	Data  json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`
	Error *ErrorDetail    `json:"error,omitempty" msgpack:"error,omitempty"`

	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes the failure carried by an error frame.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

func (e *ErrorDetail) Error() string { return e.Message }

// Decode unmarshals the frame's data into v.
func (f *Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return errors.New("webview: frame has no data")
	}
	return json.Unmarshal(f.Data, v)
}

// Client request methods.
const (
	MethodAuth        = "auth"
	MethodSubscribe   = "subscribe"
	MethodUnsubscribe = "unsubscribe"
	MethodMessage     = "message"
	MethodCallback    = "callback"
)

// Error codes mirror HTTP status codes.
const (
	ErrCodeBadRequest     = 400
	ErrCodeUnauthorized   = 401
	ErrCodeForbidden      = 403
	ErrCodeMethodNotFound = 405
	ErrCodeInternal       = 500
)

// AuthRequest is the data of the auth frame.
type AuthRequest struct {
	Token string `json:"token"`
	// Format selects the codec for every later frame: "json" (default)
	// or "msgpack".
	Format string `json:"format,omitempty"`
}

// AuthResponse confirms authentication. It is always sent as JSON.
type AuthResponse struct {
	Format    string `json:"format"`
	SessionID string `json:"session_id"`
	Subject   string `json:"subject"`
}

// SubscribeResponse confirms a subscription.
type SubscribeResponse struct {
	Thread      string `json:"thread"`
	Subscribers int    `json:"subscribers"`
}

// InboundMessage is the data of message and callback frames sent by
// clients. Callback frames carry the pressed button's value.
type InboundMessage struct {
	Text  string `json:"text,omitempty"`
	Value string `json:"value,omitempty"`
}

// NewRequestFrame creates a request frame with data marshaled as JSON.
func NewRequestFrame(frameID, method string, data any) (*Frame, error) {
	f := &Frame{ID: frameID, Type: FrameRequest, Method: method, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		f.Data = raw
	}
	return f, nil
}

// NewResponseFrame creates a response to the request correlID.
func NewResponseFrame(correlID string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        id.NewFrameID().String(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewErrorFrame creates an error response to the request correlID.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:        id.NewFrameID().String(),
		Type:      FrameErr,
		CorrelID:  correlID,
		Error:     &ErrorDetail{Code: code, Message: message},
		Timestamp: time.Now().UTC(),
	}
}

// mustResponseFrame creates a response frame, or an error frame if data
// cannot be marshaled.
func mustResponseFrame(correlID string, data any) *Frame {
	resp, err := NewResponseFrame(correlID, data)
	if err != nil {
		return NewErrorFrame(correlID, ErrCodeInternal, "marshal response: "+err.Error())
	}
	return resp
}

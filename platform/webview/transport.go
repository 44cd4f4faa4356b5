package webview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/parley"
	"github.com/xraph/parley/id"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/worker"
)

// ErrNoConnection is returned when no live connection accepted a frame.
var ErrNoConnection = errors.New("webview: no connection received the frame")

var _ worker.Transport = (*Transport)(nil)

// Delivery is the result of a published frame.
type Delivery struct {
	FrameID   string `json:"frame_id"`
	Delivered int    `json:"delivered"`
}

// Transport publishes job requests as event frames through a Hub.
type Transport struct {
	hub *Hub
	now func() time.Time
}

// NewTransport returns a transport publishing through hub.
func NewTransport(hub *Hub) *Transport {
	return &Transport{hub: hub, now: time.Now}
}

// Call implements worker.Transport. The request method becomes the frame
// method and its params the frame data.
func (t *Transport) Call(ctx context.Context, target job.Target, req job.Request) (job.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := req.Params
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("webview: %s: encode: %w", req.Method, err)
	}

	f := &Frame{
		ID:        id.NewFrameID().String(),
		Type:      FrameEvent,
		Method:    req.Method,
		Data:      data,
		Timestamp: t.now().UTC(),
	}

	var n int
	switch tg := target.(type) {
	case Thread:
		f.Thread = tg.ID
		n = t.hub.Publish(tg.ID, f)
	case Connection:
		n = t.hub.SendTo(tg.ID, f)
	default:
		return nil, fmt.Errorf("%w: webview frame to %T", parley.ErrInvalidJob, target)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoConnection, target.UID())
	}
	return job.NewResult(Delivery{FrameID: f.ID, Delivered: n}), nil
}

// Upload implements worker.Transport. Webview content is inlined, so
// there is nothing to upload.
func (t *Transport) Upload(context.Context, job.Target, job.Request) (job.Result, error) {
	return nil, parley.ErrUploadUnsupported
}

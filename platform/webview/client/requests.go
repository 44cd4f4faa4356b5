package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/parley/platform/webview"
)

// Subscribe starts receiving the events published to thread. It returns
// the number of subscribers on the thread.
func (c *Client) Subscribe(ctx context.Context, thread string) (int, error) {
	resp, err := c.call(ctx, webview.MethodSubscribe, thread, nil)
	if err != nil {
		return 0, err
	}
	var sr webview.SubscribeResponse
	if err := resp.Decode(&sr); err != nil {
		return 0, err
	}
	return sr.Subscribers, nil
}

// Unsubscribe stops receiving thread's events.
func (c *Client) Unsubscribe(ctx context.Context, thread string) error {
	_, err := c.call(ctx, webview.MethodUnsubscribe, thread, nil)
	return err
}

// Send posts a user message to thread. An empty thread addresses the
// connection itself.
func (c *Client) Send(ctx context.Context, thread, text string) error {
	_, err := c.call(ctx, webview.MethodMessage, thread, webview.InboundMessage{Text: text})
	return err
}

// Press reports a button press carrying value.
func (c *Client) Press(ctx context.Context, thread, value string) error {
	_, err := c.call(ctx, webview.MethodCallback, thread, webview.InboundMessage{Value: value})
	return err
}

// Ping measures the round trip to the server.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	f := &webview.Frame{ID: uuid.NewString(), Type: webview.FramePing, Timestamp: start.UTC()}
	if _, err := c.request(ctx, f); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

package webview

// Thread addresses every connection subscribed to a conversation thread.
type Thread struct {
	ID string
}

// UID implements job.Target.
func (t Thread) UID() string { return "webview:thread:" + t.ID }

// Key returns the ordering key of the thread.
func (t Thread) Key() string { return "webview.thread." + t.ID }

// Connection addresses a single connected client.
type Connection struct {
	ID string
}

// UID implements job.Target.
func (c Connection) UID() string { return "webview:conn:" + c.ID }

// Key returns the ordering key of the connection.
func (c Connection) Key() string { return "webview.conn." + c.ID }

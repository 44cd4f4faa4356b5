package webview

// MaxMessageLength is the longest text sent in one message frame, in
// runes. Longer text is split.
const MaxMessageLength = 16384

// Button is a part attached to the message or card before it. Clients
// answer a pressed button with a callback frame carrying Value, or open
// URL.
type Button struct {
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Image is a unit sent as an "image" frame. Data is inlined as a data
// URL when URL is empty.
type Image struct {
	URL         string
	Alt         string
	Data        []byte
	ContentType string
}

// Card is a unit sent as a "card" frame.
type Card struct {
	Title    string
	Body     string
	ImageURL string
}

// Typing is a unit sent as a "typing" frame.
type Typing struct{}

// Call is a unit sent as a frame of an arbitrary method.
type Call struct {
	Method string
	Params map[string]any
}

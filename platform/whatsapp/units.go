package whatsapp

// MaxTextLength is the longest body of a text message.
const MaxTextLength = 4096

// maxButtons is the most reply buttons an interactive message holds.
const maxButtons = 3

// MediaFile is media to send. ID reuses an uploaded media id, Link sends
// by public URL, and Data is uploaded before the message is sent.
type MediaFile struct {
	ID   string
	Link string

	Name        string
	ContentType string
	Data        []byte

	// Asset names the upload so it is reused within the conversation and,
	// with an asset store, across renders.
	Asset string
}

// Image sends a picture.
type Image struct {
	File    MediaFile
	Caption string
}

// Document sends a file shown with its name.
type Document struct {
	File     MediaFile
	Caption  string
	Filename string
}

// Audio sends a voice note or audio file.
type Audio struct {
	File MediaFile
}

// Video sends a video.
type Video struct {
	File    MediaFile
	Caption string
}

// Template sends a pre-approved message template, the only kind of message
// allowed outside the customer service window.
type Template struct {
	Name       string
	Language   string
	Components []any
}

// ReplyButton is a quick reply button. As a render part it attaches to the
// text message before it.
type ReplyButton struct {
	ID    string
	Title string
}

// Call is a raw Graph API request sent in order with the conversation.
// Path is relative to the versioned API base.
type Call struct {
	Method string
	Path   string
	Params map[string]any
}

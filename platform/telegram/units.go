package telegram

// MaxMessageLength is the longest text a single sendMessage accepts.
const MaxMessageLength = 4096

// InputFile is a file to send. Exactly one of FileID, URL, or Data is
// used, in that order of preference. When Asset is set and the bot has an
// asset store, an earlier upload of the same asset is reused by file id
// and a new upload is remembered.
type InputFile struct {
	FileID string
	URL    string

	Name        string
	ContentType string
	Data        []byte

	Asset string
}

// Photo sends a picture with an optional caption.
type Photo struct {
	File    InputFile
	Caption string
}

// Document sends a general file with an optional caption.
type Document struct {
	File    InputFile
	Caption string
}

// Button is an inline keyboard button. As a render part it attaches a
// row to the message it follows.
type Button struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// Call is a raw Bot API method call sent in order with the rest of the
// chat's messages. chat_id is filled in from the target when absent.
type Call struct {
	Method string
	Params map[string]any
}

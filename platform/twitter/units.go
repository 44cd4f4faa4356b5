package twitter

// MaxTweetLength is the character limit of a standard tweet.
const MaxTweetLength = 280

// MaxDirectMessageLength is the character limit of a direct message.
const MaxDirectMessageLength = 10000

// Media is an image, GIF, or video posted as its own tweet (or direct
// message) with optional text.
type Media struct {
	Name        string
	ContentType string
	Data        []byte

	// Category is the media_category of the upload, e.g. "tweet_image".
	// Derived from ContentType when empty.
	Category string

	Text string

	// AltText is set as the image description once uploaded.
	AltText string
}

// Call is a raw API request sent in order with the rest of the thread.
// Path is relative to the API base, e.g. "2/users/me".
type Call struct {
	Method string
	Path   string
	Params map[string]any
}

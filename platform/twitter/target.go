package twitter

// TweetTarget posts a new tweet, or a reply when ReplyTo is set.
type TweetTarget struct {
	ReplyTo string
}

// UID implements job.Target.
func (t TweetTarget) UID() string {
	if t.ReplyTo == "" {
		return "twitter:tweet"
	}
	return "twitter:tweet:" + t.ReplyTo
}

// DirectMessageTarget sends a direct message to a user.
type DirectMessageTarget struct {
	ParticipantID string
}

// UID implements job.Target.
func (t DirectMessageTarget) UID() string { return "twitter:dm:" + t.ParticipantID }

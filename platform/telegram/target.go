package telegram

import "strconv"

// Chat addresses a Telegram chat by numeric id or "@channelusername".
type Chat struct {
	ID string
}

// ChatID returns the Chat for a numeric chat id.
func ChatID(id int64) Chat { return Chat{ID: strconv.FormatInt(id, 10)} }

// UID implements job.Target.
func (c Chat) UID() string { return "telegram:" + c.ID }

// Key returns the ordering key shared by every job sent to the chat.
func (c Chat) Key() string { return "telegram." + c.ID }

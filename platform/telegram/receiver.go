package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/xraph/parley/job"
	"github.com/xraph/parley/platform"
)

// maxUpdateSize bounds webhook request bodies.
const maxUpdateSize = 1 << 20

// Update is the subset of a Bot API update the receiver understands.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	EditedMessage *Message       `json:"edited_message,omitempty"`
	ChannelPost   *Message       `json:"channel_post,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// User is a Telegram user or bot.
type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username,omitempty"`
}

// Message is a Telegram message.
type Message struct {
	MessageID int64 `json:"message_id"`
	From      *User `json:"from,omitempty"`
	Chat      struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	} `json:"chat"`
	Text     string      `json:"text,omitempty"`
	Caption  string      `json:"caption,omitempty"`
	Photo    []PhotoSize `json:"photo,omitempty"`
	Document *FileRef    `json:"document,omitempty"`
}

// PhotoSize is one resolution of a sent photo.
type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// FileRef is a reference to a stored file.
type FileRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
}

// CallbackQuery is an inline keyboard button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// Receiver is the webhook endpoint Telegram posts updates to.
type Receiver struct {
	handler platform.Handler
	secret  string
	logger  *slog.Logger
}

// NewReceiver returns a receiver delivering events to h. When secret is
// non-empty, deliveries without the matching secret token header are
// rejected.
func NewReceiver(h platform.Handler, secret string, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{handler: h, secret: secret, logger: logger}
}

// ServeHTTP implements http.Handler.
func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if rc.secret != "" && !platform.EqualToken(rc.secret, r.Header.Get("X-Telegram-Bot-Api-Secret-Token")) {
		rc.logger.Warn("webhook rejected", slog.String("platform", Platform), slog.String("remote", r.RemoteAddr))
		http.Error(w, platform.ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateSize))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	var u Update
	if err := json.Unmarshal(raw, &u); err != nil {
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}

	if ev, ok := toEvent(u, raw); ok {
		if err := rc.handler.HandleEvent(r.Context(), ev); err != nil {
			rc.logger.Error("event handler failed",
				slog.String("platform", Platform),
				slog.String("type", ev.Type),
				slog.Int64("update_id", u.UpdateID),
				slog.String("error", err.Error()),
			)
		}
	}
	w.WriteHeader(http.StatusOK)
}

func toEvent(u Update, raw json.RawMessage) (platform.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		var target job.Target
		if cq.Message != nil {
			target = ChatID(cq.Message.Chat.ID)
		}
		ev := platform.NewEvent(Platform, "callback", target)
		ev.ID = cq.ID
		ev.UserID = strconv.FormatInt(cq.From.ID, 10)
		ev.Text = cq.Data
		ev.Raw = raw
		return ev, true
	}

	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil {
		msg = u.ChannelPost
	}
	if msg == nil {
		return platform.Event{}, false
	}

	typ := "message"
	text := msg.Text
	if text == "" && (len(msg.Photo) > 0 || msg.Document != nil) {
		typ = "media"
		text = msg.Caption
	}
	ev := platform.NewEvent(Platform, typ, ChatID(msg.Chat.ID))
	ev.ID = strconv.FormatInt(msg.MessageID, 10)
	if msg.From != nil {
		ev.UserID = strconv.FormatInt(msg.From.ID, 10)
	}
	ev.Text = text
	ev.Raw = raw
	return ev, true
}

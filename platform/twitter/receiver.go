package twitter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/xraph/parley/platform"
)

const maxEventSize = 1 << 20

// activity is the subset of an Account Activity API delivery the
// receiver understands.
type activity struct {
	ForUserID         string `json:"for_user_id"`
	TweetCreateEvents []struct {
		IDStr string `json:"id_str"`
		Text  string `json:"text"`
		User  struct {
			IDStr string `json:"id_str"`
		} `json:"user"`
	} `json:"tweet_create_events"`
	DirectMessageEvents []struct {
		Type          string `json:"type"`
		ID            string `json:"id"`
		MessageCreate struct {
			SenderID    string `json:"sender_id"`
			MessageData struct {
				Text string `json:"text"`
			} `json:"message_data"`
		} `json:"message_create"`
	} `json:"direct_message_events"`
}

// Receiver is the Account Activity webhook endpoint. GET requests answer
// CRC challenges; POST deliveries are verified against the
// x-twitter-webhooks-signature header.
type Receiver struct {
	handler platform.Handler
	secret  []byte
	logger  *slog.Logger
}

// NewReceiver returns a receiver delivering events to h. consumerSecret
// signs CRC responses and verifies deliveries.
func NewReceiver(h platform.Handler, consumerSecret string, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{handler: h, secret: []byte(consumerSecret), logger: logger}
}

// ServeHTTP implements http.Handler.
func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rc.crc(w, r)
	case http.MethodPost:
		rc.deliver(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (rc *Receiver) crc(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("crc_token")
	if token == "" || len(rc.secret) == 0 {
		http.Error(w, "missing crc_token", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"response_token": platform.SignBase64(rc.secret, []byte(token)),
	})
}

func (rc *Receiver) deliver(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventSize))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	if len(rc.secret) == 0 || !platform.VerifyBase64(rc.secret, raw, r.Header.Get("X-Twitter-Webhooks-Signature")) {
		rc.logger.Warn("webhook rejected", slog.String("platform", Platform), slog.String("remote", r.RemoteAddr))
		http.Error(w, platform.ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	var a activity
	if err := json.Unmarshal(raw, &a); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	for _, ev := range toEvents(a, raw) {
		if err := rc.handler.HandleEvent(r.Context(), ev); err != nil {
			rc.logger.Error("event handler failed",
				slog.String("platform", Platform),
				slog.String("type", ev.Type),
				slog.String("id", ev.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	w.WriteHeader(http.StatusOK)
}

// toEvents skips the bot's own tweets and messages.
func toEvents(a activity, raw json.RawMessage) []platform.Event {
	var out []platform.Event
	for _, t := range a.TweetCreateEvents {
		if t.User.IDStr == a.ForUserID {
			continue
		}
		ev := platform.NewEvent(Platform, "message", TweetTarget{ReplyTo: t.IDStr})
		ev.ID = t.IDStr
		ev.UserID = t.User.IDStr
		ev.Text = t.Text
		ev.Raw = raw
		out = append(out, ev)
	}
	for _, dm := range a.DirectMessageEvents {
		if dm.Type != "message_create" || dm.MessageCreate.SenderID == a.ForUserID {
			continue
		}
		ev := platform.NewEvent(Platform, "direct_message", DirectMessageTarget{ParticipantID: dm.MessageCreate.SenderID})
		ev.ID = dm.ID
		ev.UserID = dm.MessageCreate.SenderID
		ev.Text = dm.MessageCreate.MessageData.Text
		ev.Raw = raw
		out = append(out, ev)
	}
	return out
}

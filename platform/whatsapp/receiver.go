package whatsapp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/xraph/parley/platform"
)

const maxNotificationSize = 1 << 20

// notification is the subset of a webhook delivery the receiver
// understands.
type notification struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []inboundMessage `json:"messages"`
				Statuses []struct {
					ID          string `json:"id"`
					Status      string `json:"status"`
					RecipientID string `json:"recipient_id"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
	} `json:"interactive,omitempty"`
	Image    *inboundMedia `json:"image,omitempty"`
	Document *inboundMedia `json:"document,omitempty"`
	Audio    *inboundMedia `json:"audio,omitempty"`
	Video    *inboundMedia `json:"video,omitempty"`
}

type inboundMedia struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

// Receiver is the Cloud API webhook endpoint. GET requests complete the
// subscription handshake; POST deliveries are verified against
// X-Hub-Signature-256.
type Receiver struct {
	handler     platform.Handler
	appSecret   []byte
	verifyToken string
	logger      *slog.Logger
}

// NewReceiver returns a receiver delivering events to h.
func NewReceiver(h platform.Handler, appSecret, verifyToken string, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{handler: h, appSecret: []byte(appSecret), verifyToken: verifyToken, logger: logger}
}

// ServeHTTP implements http.Handler.
func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rc.verify(w, r)
	case http.MethodPost:
		rc.deliver(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (rc *Receiver) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || !platform.EqualToken(rc.verifyToken, q.Get("hub.verify_token")) {
		http.Error(w, platform.ErrUnauthorized.Error(), http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

func (rc *Receiver) deliver(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationSize))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	if len(rc.appSecret) == 0 || !platform.VerifyHex(rc.appSecret, raw, r.Header.Get("X-Hub-Signature-256")) {
		rc.logger.Warn("webhook rejected", slog.String("platform", Platform), slog.String("remote", r.RemoteAddr))
		http.Error(w, platform.ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	for _, ev := range toEvents(n, raw) {
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

func toEvents(n notification, raw json.RawMessage) []platform.Event {
	var out []platform.Event
	for _, entry := range n.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			business := change.Value.Metadata.PhoneNumberID

			for _, m := range change.Value.Messages {
				ev := platform.NewEvent(Platform, "message", Chat{BusinessNumber: business, CustomerNumber: m.From})
				ev.ID = m.ID
				ev.UserID = m.From
				ev.Raw = raw
				switch {
				case m.Text != nil:
					ev.Text = m.Text.Body
				case m.Interactive != nil && m.Interactive.ButtonReply != nil:
					ev.Type = "callback"
					ev.Text = m.Interactive.ButtonReply.ID
				default:
					if media := firstMedia(m); media != nil {
						ev.Type = "media"
						ev.Text = media.Caption
					} else {
						ev.Type = m.Type
					}
				}
				out = append(out, ev)
			}

			for _, s := range change.Value.Statuses {
				ev := platform.NewEvent(Platform, "status", Chat{BusinessNumber: business, CustomerNumber: s.RecipientID})
				ev.ID = s.ID
				ev.Text = s.Status
				ev.Raw = raw
				out = append(out, ev)
			}
		}
	}
	return out
}

func firstMedia(m inboundMessage) *inboundMedia {
	for _, media := range []*inboundMedia{m.Image, m.Document, m.Audio, m.Video} {
		if media != nil {
			return media
		}
	}
	return nil
}

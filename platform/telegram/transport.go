package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/xraph/parley"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/worker"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// maxResponseSize bounds the Bot API responses read into memory.
const maxResponseSize = 10 << 20

var _ worker.Transport = (*Transport)(nil)

// Transport performs Bot API calls over HTTP.
type Transport struct {
	token  string
	apiURL string
	client *http.Client
}

// NewTransport returns a transport for the bot identified by token.
func NewTransport(token, apiURL string, client *http.Client) *Transport {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{token: token, apiURL: strings.TrimRight(apiURL, "/"), client: client}
}

// envelope is the Bot API response wrapper.
type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter      int   `json:"retry_after"`
		MigrateToChatID int64 `json:"migrate_to_chat_id"`
	} `json:"parameters"`
}

// Call implements worker.Transport. The chat id of a Chat target is added
// as chat_id unless the request sets it.
func (t *Transport) Call(ctx context.Context, target job.Target, req job.Request) (job.Result, error) {
	if req.Method == "" {
		return nil, fmt.Errorf("%w: telegram request without method", parley.ErrInvalidJob)
	}

	params := make(map[string]any, len(req.Params)+1)
	for k, v := range req.Params {
		params[k] = v
	}
	if chat, ok := target.(Chat); ok && chat.ID != "" {
		if _, set := params["chat_id"]; !set {
			params["chat_id"] = chat.ID
		}
	}

	var (
		body        io.Reader
		contentType string
		err         error
	)
	if len(req.Files) > 0 {
		body, contentType, err = multipartBody(params, req.Files)
	} else {
		body, contentType, err = jsonBody(params)
	}
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: encode: %w", req.Method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/bot"+t.token+"/"+req.Method, body)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", req.Method, t.redact(err))
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", req.Method, t.redact(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: read response: %w", req.Method, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &platform.APIError{
			Platform:   Platform,
			Method:     req.Method,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("undecodable response: %s", truncate(raw, 200)),
		}
	}
	if !env.OK {
		apiErr := &platform.APIError{
			Platform:   Platform,
			Method:     req.Method,
			StatusCode: resp.StatusCode,
			Code:       env.ErrorCode,
			Message:    env.Description,
		}
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			apiErr.Wait = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return nil, apiErr
	}
	return job.Result(env.Result), nil
}

// Upload implements worker.Transport. Telegram uploads files inline with
// the message, so there is no separate upload call.
func (t *Transport) Upload(context.Context, job.Target, job.Request) (job.Result, error) {
	return nil, parley.ErrUploadUnsupported
}

// redact strips the bot token from URL errors.
func (t *Transport) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = strings.ReplaceAll(ue.URL, t.token, "<token>")
	}
	return err
}

func jsonBody(params map[string]any) (io.Reader, string, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(b), "application/json", nil
}

// multipartBody encodes string params verbatim and everything else as
// JSON, which is what the Bot API expects for fields like reply_markup.
func multipartBody(params map[string]any, files []job.File) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range params {
		var val string
		switch x := v.(type) {
		case string:
			val = x
		default:
			b, err := json.Marshal(x)
			if err != nil {
				return nil, "", fmt.Errorf("param %s: %w", k, err)
			}
			val = string(b)
		}
		if err := mw.WriteField(k, val); err != nil {
			return nil, "", err
		}
	}

	for _, f := range files {
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if f.Data == nil {
			return nil, "", fmt.Errorf("file %s has no data", f.Field)
		}
		if _, err := io.Copy(part, platform.Rewind(f.Data)); err != nil {
			return nil, "", fmt.Errorf("file %s: %w", f.Field, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

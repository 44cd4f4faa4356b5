package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/xraph/parley"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/worker"
)

// DefaultAPIURL is the versioned Graph API base.
const DefaultAPIURL = "https://graph.facebook.com/v21.0"

const maxResponseSize = 10 << 20

// throttleCodes are Graph API error codes reporting rate limits.
var throttleCodes = map[int]bool{
	4:      true, // application request limit
	80007:  true, // WhatsApp Business account rate limit
	130429: true, // Cloud API throughput
	131048: true, // spam rate limit
	131056: true, // pair rate limit
}

var _ worker.Transport = (*Transport)(nil)

// Transport performs Cloud API calls with an authenticated client.
type Transport struct {
	apiURL string
	client *http.Client
}

// NewTransport returns a transport. An empty apiURL selects
// DefaultAPIURL.
func NewTransport(client *http.Client, apiURL string) *Transport {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{apiURL: strings.TrimRight(apiURL, "/"), client: client}
}

// Call implements worker.Transport. A request with a Path is sent as-is;
// otherwise it is a message from the chat's business number to its
// customer.
func (t *Transport) Call(ctx context.Context, target job.Target, req job.Request) (job.Result, error) {
	if req.Path != "" {
		return t.raw(ctx, req)
	}

	chat, ok := target.(Chat)
	if !ok {
		return nil, fmt.Errorf("%w: whatsapp message to %T", parley.ErrInvalidJob, target)
	}
	body := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                chat.CustomerNumber,
	}
	for k, v := range req.Params {
		body[k] = v
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: messages: encode: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/"+chat.BusinessNumber+"/messages", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: messages: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return t.do(httpReq, "messages")
}

// Upload implements worker.Transport by uploading to the business
// number's media endpoint. The result carries the media id.
func (t *Transport) Upload(ctx context.Context, target job.Target, req job.Request) (job.Result, error) {
	chat, ok := target.(Chat)
	if !ok {
		return nil, fmt.Errorf("%w: whatsapp upload for %T", parley.ErrInvalidJob, target)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("messaging_product", "whatsapp"); err != nil {
		return nil, err
	}
	for k, v := range req.Params {
		if err := mw.WriteField(k, fmt.Sprint(v)); err != nil {
			return nil, err
		}
	}
	for _, f := range req.Files {
		if f.Data == nil {
			return nil, fmt.Errorf("whatsapp: upload: file %s has no data", f.Field)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		h.Set("Content-Type", f.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, platform.Rewind(f.Data)); err != nil {
			return nil, fmt.Errorf("whatsapp: upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/"+chat.BusinessNumber+"/media", &buf)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: media: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	return t.do(httpReq, "media")
}

func (t *Transport) raw(ctx context.Context, req job.Request) (job.Result, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	u := t.apiURL + "/" + strings.TrimLeft(req.Path, "/")

	var body io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		if len(req.Params) > 0 {
			q := url.Values{}
			for k, v := range req.Params {
				q.Set(k, fmt.Sprint(v))
			}
			u += "?" + q.Encode()
		}
	} else {
		b, err := json.Marshal(req.Params)
		if err != nil {
			return nil, fmt.Errorf("whatsapp: %s: encode: %w", req.Path, err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: %s: %w", req.Path, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return t.do(httpReq, req.Path)
}

func (t *Transport) do(req *http.Request, method string) (job.Result, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: %s: read response: %w", method, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return job.Result(raw), nil
	}

	var graph struct {
		Error struct {
			Message   string `json:"message"`
			Type      string `json:"type"`
			Code      int    `json:"code"`
			Subcode   int    `json:"error_subcode"`
			FBTraceID string `json:"fbtrace_id"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &graph)
	msg := graph.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return nil, &platform.APIError{
		Platform:   Platform,
		Method:     method,
		StatusCode: resp.StatusCode,
		Code:       graph.Error.Code,
		Message:    msg,
		Wait:       platform.ParseRetryAfter(resp.Header),
		Temporary:  throttleCodes[graph.Error.Code],
	}
}

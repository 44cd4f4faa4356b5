package twitter

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
	"strconv"
	"strings"
	"time"

	"github.com/xraph/parley"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/worker"
)

// Default endpoints.
const (
	DefaultAPIURL    = "https://api.twitter.com"
	DefaultUploadURL = "https://upload.twitter.com"
)

const maxResponseSize = 10 << 20

var _ worker.Transport = (*Transport)(nil)

// Transport performs API calls with an authenticated HTTP client, usually
// one built by golang.org/x/oauth2 that adds the bearer token.
type Transport struct {
	apiURL    string
	uploadURL string
	client    *http.Client
	now       func() time.Time
}

// NewTransport returns a transport. Empty URLs select the public
// endpoints.
func NewTransport(client *http.Client, apiURL, uploadURL string) *Transport {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{
		apiURL:    strings.TrimRight(apiURL, "/"),
		uploadURL: strings.TrimRight(uploadURL, "/"),
		client:    client,
		now:       time.Now,
	}
}

// Call implements worker.Transport. Messages posted to the tweet and
// direct message endpoints are addressed by the resolved target: a
// TweetTarget with ReplyTo becomes a reply, and media ids merged by
// Finalize are placed where each endpoint expects them.
func (t *Transport) Call(ctx context.Context, target job.Target, req job.Request) (job.Result, error) {
	if req.Path == "" {
		return nil, fmt.Errorf("%w: twitter request without path", parley.ErrInvalidJob)
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	params := make(map[string]any, len(req.Params)+1)
	for k, v := range req.Params {
		params[k] = v
	}

	switch tgt := target.(type) {
	case TweetTarget:
		if req.Path == tweetsPath {
			params = tweetBody(tgt, params)
		}
	case DirectMessageTarget:
		if req.Path == dmPath(tgt.ParticipantID) {
			params = dmBody(params)
		}
	}

	u := t.apiURL + "/" + strings.TrimLeft(req.Path, "/")
	var body io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		if q := query(params); q != "" {
			u += "?" + q
		}
	} else {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("twitter: %s: encode: %w", req.Path, err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("twitter: %s: %w", req.Path, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return t.do(httpReq, req.Path)
}

// Upload implements worker.Transport by posting a multipart media upload.
// An alt_text param is applied with a follow-up metadata call.
func (t *Transport) Upload(ctx context.Context, _ job.Target, req job.Request) (job.Result, error) {
	path := req.Path
	if path == "" {
		path = uploadPath
	}
	params := make(map[string]any, len(req.Params))
	for k, v := range req.Params {
		params[k] = v
	}
	alt, _ := params["alt_text"].(string)
	delete(params, "alt_text")

	body, contentType, err := multipartBody(params, req.Files)
	if err != nil {
		return nil, fmt.Errorf("twitter: upload: encode: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL+"/"+path, body)
	if err != nil {
		return nil, fmt.Errorf("twitter: upload: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	res, err := t.do(httpReq, path)
	if err != nil || alt == "" {
		return res, err
	}

	var up struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := res.Decode(&up); err != nil {
		return nil, fmt.Errorf("twitter: upload: decode: %w", err)
	}
	meta, _ := json.Marshal(map[string]any{
		"media_id": up.MediaIDString,
		"alt_text": map[string]string{"text": alt},
	})
	metaReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL+"/"+metadataPath, bytes.NewReader(meta))
	if err != nil {
		return nil, fmt.Errorf("twitter: media metadata: %w", err)
	}
	metaReq.Header.Set("Content-Type", "application/json")
	if _, err := t.do(metaReq, metadataPath); err != nil {
		return nil, err
	}
	return res, nil
}

func (t *Transport) do(req *http.Request, path string) (job.Result, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("twitter: %s: read response: %w", path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(bytes.TrimSpace(raw)) == 0 {
			raw = []byte("{}")
		}
		return job.Result(raw), nil
	}
	return nil, t.apiError(resp, raw, path)
}

// apiError decodes both v2 problem documents and v1.1 error lists.
func (t *Transport) apiError(resp *http.Response, raw []byte, path string) error {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	_ = json.Unmarshal(raw, &problem)

	apiErr := &platform.APIError{
		Platform:   Platform,
		Method:     path,
		StatusCode: resp.StatusCode,
		Message:    problem.Detail,
	}
	if apiErr.Message == "" {
		apiErr.Message = problem.Title
	}
	if len(problem.Errors) > 0 {
		apiErr.Code = problem.Errors[0].Code
		if apiErr.Message == "" {
			apiErr.Message = problem.Errors[0].Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.Wait = platform.ParseRetryAfter(resp.Header)
		if reset, err := strconv.ParseInt(resp.Header.Get("x-rate-limit-reset"), 10, 64); err == nil {
			if d := time.Unix(reset, 0).Sub(t.now()); d > apiErr.Wait {
				apiErr.Wait = d
			}
		}
	}
	return apiErr
}

func tweetBody(t TweetTarget, params map[string]any) map[string]any {
	if t.ReplyTo != "" {
		params["reply"] = map[string]any{"in_reply_to_tweet_id": t.ReplyTo}
	}
	if ids, ok := params["media_ids"]; ok {
		delete(params, "media_ids")
		params["media"] = map[string]any{"media_ids": ids}
	}
	return params
}

func dmBody(params map[string]any) map[string]any {
	if ids, ok := params["media_ids"].([]string); ok {
		delete(params, "media_ids")
		attachments := make([]map[string]string, len(ids))
		for i, id := range ids {
			attachments[i] = map[string]string{"media_id": id}
		}
		params["attachments"] = attachments
	}
	return params
}

func query(params map[string]any) string {
	v := url.Values{}
	for k, p := range params {
		v.Set(k, fmt.Sprint(p))
	}
	return v.Encode()
}

func multipartBody(params map[string]any, files []job.File) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range params {
		if err := mw.WriteField(k, fmt.Sprint(v)); err != nil {
			return nil, "", err
		}
	}
	for _, f := range files {
		if f.Data == nil {
			return nil, "", fmt.Errorf("file %s has no data", f.Field)
		}
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
		if _, err := io.Copy(part, platform.Rewind(f.Data)); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

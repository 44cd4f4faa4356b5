package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/parley"
	"github.com/xraph/parley/backoff"
	"github.com/xraph/parley/engine"
	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/render"
	"github.com/xraph/parley/state/memory"
)

var chat = Chat{BusinessNumber: "pn1", CustomerNumber: "15550001"}

// ──────────────────────────────────────────────────
// Fake Cloud API
// ──────────────────────────────────────────────────

type apiCall struct {
	Path string
	Auth string
	Body map[string]any
	Form map[string]string
	File string
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
	seq   int
	fail  func(c apiCall, n int) (int, string)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := apiCall{Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		_ = r.ParseMultipartForm(1 << 20)
		c.Form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			c.Form[k] = v[0]
		}
		if fhs := r.MultipartForm.File["file"]; len(fhs) > 0 {
			fh, _ := fhs[0].Open()
			b, _ := io.ReadAll(fh)
			fh.Close()
			c.File = string(b)
		}
	} else {
		_ = json.NewDecoder(r.Body).Decode(&c.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.seq++
	n := f.seq
	fail := f.fail
	f.mu.Unlock()

	if fail != nil {
		if status, body := fail(c, n); status != 0 {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, body)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(c.Path, "/media"):
		fmt.Fprintf(w, `{"id":"media-%d"}`, n)
	case strings.HasSuffix(c.Path, "/messages"):
		fmt.Fprintf(w, `{"messaging_product":"whatsapp","contacts":[{"wa_id":%q}],"messages":[{"id":"wamid.%d"}]}`, c.Body["to"], n)
	default:
		_, _ = io.WriteString(w, `{"id":"pn1","display_phone_number":"+1 555"}`)
	}
}

func (f *fakeAPI) snapshot() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func count(calls []apiCall, suffix string) int {
	n := 0
	for _, c := range calls {
		if strings.HasSuffix(c.Path, suffix) {
			n++
		}
	}
	return n
}

func newTestBot(t *testing.T, srv *httptest.Server, opts ...Option) *Bot {
	t.Helper()
	b, err := New(append([]Option{WithToken("wa-token"), WithAPIURL(srv.URL)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Stop(context.Background()) })
	return b
}

func mediaID(c apiCall, kind string) string {
	m, _ := c.Body[kind].(map[string]any)
	s, _ := m["id"].(string)
	return s
}

// ──────────────────────────────────────────────────
// Sending
// ──────────────────────────────────────────────────

func TestRender_TextAndButtons(t *testing.T) {
	api, srv := newFakeAPI(t)
	bot := newTestBot(t, srv)

	res, err := bot.Render(context.Background(), chat, render.Fragment(
		render.Text("Pick one"),
		render.Part(ReplyButton{ID: "yes", Title: "Yes"}),
		render.Part(ReplyButton{ID: "no", Title: "No"}),
		render.Break(),
		render.Text("plain"),
	))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Batch) != 2 {
		t.Fatalf("batch = %d", len(res.Batch))
	}

	calls := api.snapshot()
	first := calls[0]
	if first.Path != "/pn1/messages" || first.Auth != "Bearer wa-token" {
		t.Fatalf("first = %+v", first)
	}
	if first.Body["to"] != "15550001" || first.Body["messaging_product"] != "whatsapp" || first.Body["type"] != "interactive" {
		t.Fatalf("first body = %+v", first.Body)
	}
	raw, _ := json.Marshal(first.Body["interactive"])
	if !strings.Contains(string(raw), `"id":"yes"`) || !strings.Contains(string(raw), `"id":"no"`) || !strings.Contains(string(raw), `"Pick one"`) {
		t.Fatalf("interactive = %s", raw)
	}
	if calls[1].Body["type"] != "text" {
		t.Fatalf("second = %+v", calls[1].Body)
	}
}

func TestRender_ReusesTaggedUploadWithinConversation(t *testing.T) {
	api, srv := newFakeAPI(t)
	bot := newTestBot(t, srv)

	logo := MediaFile{Name: "logo.png", ContentType: "image/png", Data: []byte("PNG"), Asset: "logo"}
	if _, err := bot.Render(context.Background(), chat, render.Fragment(
		render.Unit(Image{File: logo, Caption: "first"}),
		render.Text("between"),
		render.Unit(Image{File: logo, Caption: "second"}),
	)); err != nil {
		t.Fatal(err)
	}

	calls := api.snapshot()
	if n := count(calls, "/media"); n != 1 {
		t.Fatalf("uploads = %d, want 1", n)
	}
	upload := calls[0]
	if upload.File != "PNG" || upload.Form["messaging_product"] != "whatsapp" || upload.Form["type"] != "image/png" {
		t.Fatalf("upload = %+v", upload)
	}

	var images []apiCall
	for _, c := range calls {
		if c.Body["type"] == "image" {
			images = append(images, c)
		}
	}
	if len(images) != 2 {
		t.Fatalf("images = %d", len(images))
	}
	if mediaID(images[0], "image") != "media-1" || mediaID(images[1], "image") != "media-1" {
		t.Fatalf("media ids = %q %q", mediaID(images[0], "image"), mediaID(images[1], "image"))
	}
	caption, _ := images[1].Body["image"].(map[string]any)["caption"].(string)
	if caption != "second" {
		t.Fatalf("caption = %q", caption)
	}
}

func TestRender_PersistsAssetsAcrossRenders(t *testing.T) {
	api, srv := newFakeAPI(t)
	bot := newTestBot(t, srv, WithAssets(memory.New()))
	ctx := context.Background()

	doc := render.Unit(Document{File: MediaFile{Data: []byte("PDF"), ContentType: "application/pdf", Asset: "terms"}, Filename: "terms.pdf"})
	if _, err := bot.Render(ctx, chat, doc); err != nil {
		t.Fatal(err)
	}
	if id, _ := bot.Assets().ID(ctx, "document", "terms"); id != "media-1" {
		t.Fatalf("cached id = %q", id)
	}

	other := Chat{BusinessNumber: "pn1", CustomerNumber: "15550002"}
	if _, err := bot.Render(ctx, other, doc); err != nil {
		t.Fatal(err)
	}
	calls := api.snapshot()
	if n := count(calls, "/media"); n != 1 {
		t.Fatalf("uploads = %d, want 1", n)
	}
	last := calls[len(calls)-1]
	if mediaID(last, "document") != "media-1" || last.Body["to"] != "15550002" {
		t.Fatalf("last = %+v", last.Body)
	}
}

func TestRender_FailedUploadDoesNotBlockConversation(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.fail = func(c apiCall, _ int) (int, string) {
		if strings.HasSuffix(c.Path, "/media") {
			return http.StatusBadRequest, `{"error":{"message":"Invalid file","type":"OAuthException","code":131053}}`
		}
		return 0, ""
	}
	bot := newTestBot(t, srv)

	_, err := bot.Render(context.Background(), chat, render.Fragment(
		render.Unit(Video{File: MediaFile{Data: []byte("MP4"), ContentType: "video/mp4"}}),
		render.Text("after"),
	))
	var de *engine.DispatchError
	if !errors.As(err, &de) || len(de.Errors) != 1 {
		t.Fatalf("err = %v", err)
	}
	if de.Result.Batch[0].Success || !de.Result.Batch[1].Success {
		t.Fatalf("outcomes = %+v %+v", de.Result.Batch[0], de.Result.Batch[1])
	}
	var apiErr *platform.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 131053 || apiErr.Method != "media" {
		t.Fatalf("api error = %+v", apiErr)
	}
	if n := count(api.snapshot(), "/messages"); n != 1 {
		t.Fatalf("messages = %d, want 1", n)
	}
}

func TestRender_RetriesThrottling(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.fail = func(_ apiCall, n int) (int, string) {
		if n == 1 {
			return http.StatusBadRequest, `{"error":{"message":"Rate limit hit","code":130429}}`
		}
		return 0, ""
	}
	cfg := parley.DefaultConfig()
	cfg.RetryAttempts = 1
	bot := newTestBot(t, srv, WithConfig(cfg), WithEngineOptions(engine.WithBackoff(backoff.NewConstant(time.Millisecond))))

	if _, err := bot.Render(context.Background(), chat, render.Text("hi")); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if n := len(api.snapshot()); n != 2 {
		t.Fatalf("calls = %d", n)
	}
}

func TestRender_Template(t *testing.T) {
	api, srv := newFakeAPI(t)
	bot := newTestBot(t, srv)

	if _, err := bot.Render(context.Background(), chat, render.Unit(Template{Name: "welcome", Language: "en_US"})); err != nil {
		t.Fatal(err)
	}
	body := api.snapshot()[0].Body
	tpl, _ := body["template"].(map[string]any)
	if body["type"] != "template" || tpl["name"] != "welcome" {
		t.Fatalf("body = %+v", body)
	}
}

func TestRender_ButtonErrors(t *testing.T) {
	_, srv := newFakeAPI(t)
	bot := newTestBot(t, srv)
	ctx := context.Background()

	_, err := bot.Render(ctx, chat, render.Part(ReplyButton{ID: "x"}))
	if !errors.Is(err, ErrOrphanButton) {
		t.Fatalf("orphan err = %v", err)
	}

	_, err = bot.Render(ctx, chat, render.Fragment(
		render.Text("q"),
		render.Part(ReplyButton{ID: "1"}), render.Part(ReplyButton{ID: "2"}),
		render.Part(ReplyButton{ID: "3"}), render.Part(ReplyButton{ID: "4"}),
	))
	if !errors.Is(err, ErrTooManyButtons) {
		t.Fatalf("too many err = %v", err)
	}

	_, err = bot.Render(ctx, Chat{BusinessNumber: "pn1"}, render.Text("x"))
	if !errors.Is(err, parley.ErrInvalidJob) {
		t.Fatalf("incomplete chat err = %v", err)
	}
}

func TestMakeAPICall(t *testing.T) {
	api, srv := newFakeAPI(t)
	bot := newTestBot(t, srv)

	res, err := bot.MakeAPICall(context.Background(), "GET", "pn1", map[string]any{"fields": "display_phone_number"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(res), "display_phone_number") {
		t.Fatalf("res = %s", res)
	}
	if p := api.snapshot()[0].Path; p != "/pn1" {
		t.Fatalf("path = %s", p)
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("err = %v", err)
	}
}

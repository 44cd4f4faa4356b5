package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/parley"
	"github.com/xraph/parley/asset"
	"github.com/xraph/parley/engine"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/render"
)

// Errors returned while building jobs.
var (
	ErrOrphanButton   = errors.New("whatsapp: reply button without a preceding text message")
	ErrTooManyButtons = errors.New("whatsapp: more than 3 reply buttons on one message")
)

// uploadTag is the tag an asset's upload is registered under.
func uploadTag(name string) string { return "media:" + name }

func (b *Bot) jobs(ctx context.Context) engine.JobFactory {
	return func(target job.Target, segments []render.Segment) ([]*job.Job, error) {
		chat, ok := target.(Chat)
		if !ok || chat.BusinessNumber == "" || chat.CustomerNumber == "" {
			return nil, fmt.Errorf("%w: whatsapp cannot send to %#v", parley.ErrInvalidJob, target)
		}

		var out []*job.Job
		for _, seg := range segments {
			switch seg.Kind {
			case render.KindText:
				for _, chunk := range platform.SplitText(seg.Text(), MaxTextLength) {
					out = append(out, textJob(chat, chunk))
				}
			case render.KindUnit:
				j, err := b.unitJob(ctx, chat, seg.Value)
				if err != nil {
					return nil, fmt.Errorf("whatsapp: %s: %w", seg.Path, err)
				}
				out = append(out, j)
			case render.KindPart:
				btn, ok := seg.Value.(ReplyButton)
				if !ok {
					return nil, fmt.Errorf("whatsapp: %s: unsupported part %T", seg.Path, seg.Value)
				}
				if len(out) == 0 {
					return nil, fmt.Errorf("%w at %s", ErrOrphanButton, seg.Path)
				}
				if err := addButton(out[len(out)-1], btn); err != nil {
					return nil, fmt.Errorf("%w at %s", err, seg.Path)
				}
			}
		}
		return out, nil
	}
}

func textJob(chat Chat, body string) *job.Job {
	return &job.Job{
		Key:    chat.Key(),
		Target: chat,
		Request: job.Request{
			Method: "messages",
			Params: map[string]any{
				"type": "text",
				"text": map[string]any{"body": body},
			},
		},
	}
}

// addButton converts a text message into an interactive button message,
// or appends to one.
func addButton(j *job.Job, btn ReplyButton) error {
	p := j.Request.Params
	button := map[string]any{"type": "reply", "reply": map[string]string{"id": btn.ID, "title": btn.Title}}

	switch p["type"] {
	case "text":
		text, _ := p["text"].(map[string]any)
		delete(p, "text")
		p["type"] = "interactive"
		p["interactive"] = map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": text["body"]},
			"action": map[string]any{"buttons": []any{button}},
		}
		return nil
	case "interactive":
		action := p["interactive"].(map[string]any)["action"].(map[string]any)
		buttons := action["buttons"].([]any)
		if len(buttons) >= maxButtons {
			return ErrTooManyButtons
		}
		action["buttons"] = append(buttons, button)
		return nil
	default:
		return ErrOrphanButton
	}
}

func (b *Bot) unitJob(ctx context.Context, chat Chat, v any) (*job.Job, error) {
	switch u := v.(type) {
	case Image:
		return b.mediaJob(ctx, chat, "image", u.File, map[string]any{"caption": u.Caption})
	case Document:
		return b.mediaJob(ctx, chat, "document", u.File, map[string]any{"caption": u.Caption, "filename": u.Filename})
	case Audio:
		return b.mediaJob(ctx, chat, "audio", u.File, nil)
	case Video:
		return b.mediaJob(ctx, chat, "video", u.File, map[string]any{"caption": u.Caption})
	case Template:
		tpl := map[string]any{"name": u.Name, "language": map[string]string{"code": u.Language}}
		if len(u.Components) > 0 {
			tpl["components"] = u.Components
		}
		return &job.Job{
			Key:     chat.Key(),
			Target:  chat,
			Request: job.Request{Method: "messages", Params: map[string]any{"type": "template", "template": tpl}},
		}, nil
	case Call:
		params := make(map[string]any, len(u.Params))
		for k, v := range u.Params {
			params[k] = v
		}
		method := u.Method
		if method == "" {
			method = "GET"
		}
		return &job.Job{
			Key:     chat.Key(),
			Target:  chat,
			Request: job.Request{Method: method, Path: u.Path, Params: params},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported unit %T", v)
	}
}

// mediaJob sends a media message of kind. Files given as data are uploaded
// by a dependency whose media id Finalize places in the message.
func (b *Bot) mediaJob(ctx context.Context, chat Chat, kind string, f MediaFile, extra map[string]any) (*job.Job, error) {
	media := map[string]any{}
	for k, v := range extra {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		media[k] = v
	}
	j := &job.Job{
		Key:    chat.Key(),
		Target: chat,
		Request: job.Request{
			Method: "messages",
			Params: map[string]any{"type": kind, kind: media},
		},
	}

	if f.ID == "" && f.Asset != "" && b.assets != nil {
		cached, err := b.assets.ID(ctx, kind, f.Asset)
		if err != nil {
			b.logger.Warn("asset lookup failed, uploading",
				slog.String("platform", Platform),
				slog.String("asset", f.Asset),
				slog.String("error", err.Error()),
			)
		}
		f.ID = cached
	}

	switch {
	case f.ID != "":
		media["id"] = f.ID
	case f.Link != "":
		media["link"] = f.Link
	case f.Data != nil:
		name := f.Name
		if name == "" {
			name = kind
		}
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		upload := job.Request{
			Method: "media",
			Params: map[string]any{"type": ct},
			Files:  []job.File{{Field: "file", Name: name, ContentType: ct, Data: platform.Bytes(f.Data)}},
		}
		dep := job.Dependency{Upload: &upload}
		if f.Asset != "" {
			dep.Tag = uploadTag(f.Asset)
			if b.assets != nil {
				asset.Annotate(j, kind, f.Asset)
			}
		}
		j.Dependencies = []job.Dependency{dep}
		j.Finalize = attachMedia(kind)
	default:
		return nil, fmt.Errorf("%s has no id, link, or data", kind)
	}
	return j, nil
}

// attachMedia returns a finalize hook that sets the uploaded media id on
// the kind object, copying it so the job's own request stays untouched.
func attachMedia(kind string) job.FinalizeFunc {
	return func(req job.Request, deps []job.Result) (job.Request, error) {
		var up struct {
			ID string `json:"id"`
		}
		if err := deps[0].Decode(&up); err != nil {
			return req, fmt.Errorf("decode media upload: %w", err)
		}
		if up.ID == "" {
			return req, errors.New("media upload returned no id")
		}
		media := map[string]any{"id": up.ID}
		if orig, ok := req.Params[kind].(map[string]any); ok {
			for k, v := range orig {
				if k != "id" {
					media[k] = v
				}
			}
		}
		req.Params[kind] = media
		return req, nil
	}
}

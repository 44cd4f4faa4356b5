package telegram

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

// ErrOrphanButton is returned when a Button part has no message before it.
var ErrOrphanButton = errors.New("telegram: button without a preceding message")

// jobs returns the factory turning segments into Bot API calls for one
// render. ctx is used for asset lookups.
func (b *Bot) jobs(ctx context.Context) engine.JobFactory {
	return func(target job.Target, segments []render.Segment) ([]*job.Job, error) {
		chat, ok := target.(Chat)
		if !ok {
			return nil, fmt.Errorf("%w: telegram cannot send to %T", parley.ErrInvalidJob, target)
		}

		var (
			out       []*job.Job
			keyboards = make(map[*job.Job][][]Button)
		)
		for _, seg := range segments {
			switch seg.Kind {
			case render.KindText:
				for _, chunk := range platform.SplitText(seg.Text(), MaxMessageLength) {
					out = append(out, b.textJob(chat, chunk))
				}
			case render.KindUnit:
				j, err := b.unitJob(ctx, chat, seg.Value)
				if err != nil {
					return nil, fmt.Errorf("telegram: %s: %w", seg.Path, err)
				}
				out = append(out, j)
			case render.KindPart:
				btn, ok := seg.Value.(Button)
				if !ok {
					return nil, fmt.Errorf("telegram: %s: unsupported part %T", seg.Path, seg.Value)
				}
				if len(out) == 0 {
					return nil, fmt.Errorf("%w at %s", ErrOrphanButton, seg.Path)
				}
				last := out[len(out)-1]
				keyboards[last] = append(keyboards[last], []Button{btn})
			}
		}

		for j, rows := range keyboards {
			j.Request.Params["reply_markup"] = map[string]any{"inline_keyboard": rows}
		}
		return out, nil
	}
}

func (b *Bot) textJob(chat Chat, text string) *job.Job {
	params := map[string]any{"text": text}
	if b.parseMode != "" {
		params["parse_mode"] = b.parseMode
	}
	return &job.Job{
		Key:     chat.Key(),
		Target:  chat,
		Request: job.Request{Method: "sendMessage", Params: params},
	}
}

func (b *Bot) unitJob(ctx context.Context, chat Chat, v any) (*job.Job, error) {
	switch u := v.(type) {
	case Photo:
		return b.mediaJob(ctx, chat, "sendPhoto", "photo", u.File, u.Caption)
	case *Photo:
		return b.mediaJob(ctx, chat, "sendPhoto", "photo", u.File, u.Caption)
	case Document:
		return b.mediaJob(ctx, chat, "sendDocument", "document", u.File, u.Caption)
	case *Document:
		return b.mediaJob(ctx, chat, "sendDocument", "document", u.File, u.Caption)
	case Call:
		params := make(map[string]any, len(u.Params))
		for k, v := range u.Params {
			params[k] = v
		}
		return &job.Job{
			Key:     chat.Key(),
			Target:  chat,
			Request: job.Request{Method: u.Method, Params: params},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported unit %T", v)
	}
}

// mediaJob builds a sendPhoto/sendDocument call. field is both the Bot API
// parameter and the asset resource name.
func (b *Bot) mediaJob(ctx context.Context, chat Chat, method, field string, f InputFile, caption string) (*job.Job, error) {
	j := &job.Job{
		Key:    chat.Key(),
		Target: chat,
		Request: job.Request{
			Method: method,
			Params: map[string]any{},
		},
	}
	if caption != "" {
		j.Request.Params["caption"] = caption
		if b.parseMode != "" {
			j.Request.Params["parse_mode"] = b.parseMode
		}
	}

	if f.FileID != "" {
		j.Request.Params[field] = f.FileID
		return j, nil
	}
	if f.Asset != "" && b.assets != nil {
		cached, err := b.assets.ID(ctx, field, f.Asset)
		if err != nil {
			b.logger.Warn("asset lookup failed, uploading",
				slog.String("platform", Platform),
				slog.String("asset", f.Asset),
				slog.String("error", err.Error()),
			)
		}
		if cached != "" {
			j.Request.Params[field] = cached
			return j, nil
		}
	}
	switch {
	case f.URL != "":
		j.Request.Params[field] = f.URL
	case f.Data != nil:
		name := f.Name
		if name == "" {
			name = field
		}
		j.Request.Files = []job.File{{
			Field:       field,
			Name:        name,
			ContentType: f.ContentType,
			Data:        platform.Bytes(f.Data),
		}}
		if f.Asset != "" && b.assets != nil {
			asset.Annotate(j, field, f.Asset)
		}
	default:
		return nil, fmt.Errorf("%s has no file id, url, or data", field)
	}
	return j, nil
}

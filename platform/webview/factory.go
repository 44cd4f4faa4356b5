package webview

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/xraph/parley"
	"github.com/xraph/parley/engine"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/render"
)

// ErrOrphanButton is returned for a button with no message or card before
// it.
var ErrOrphanButton = errors.New("webview: button without a preceding message or card")

type keyed interface {
	job.Target
	Key() string
}

func (b *Bot) jobs() engine.JobFactory {
	return func(target job.Target, segments []render.Segment) ([]*job.Job, error) {
		t, ok := target.(keyed)
		if !ok || !validTarget(target) {
			return nil, fmt.Errorf("%w: webview cannot send to %#v", parley.ErrInvalidJob, target)
		}
		key := t.Key()

		var out []*job.Job
		for _, seg := range segments {
			switch seg.Kind {
			case render.KindText:
				for _, chunk := range platform.SplitText(seg.Text(), MaxMessageLength) {
					out = append(out, newJob(t, key, "message", map[string]any{"text": chunk}))
				}
			case render.KindUnit:
				j, err := unitJob(t, key, seg.Value)
				if err != nil {
					return nil, fmt.Errorf("webview: %s: %w", seg.Path, err)
				}
				out = append(out, j)
			case render.KindPart:
				btn, ok := seg.Value.(Button)
				if !ok {
					return nil, fmt.Errorf("webview: %s: unsupported part %T", seg.Path, seg.Value)
				}
				if len(out) == 0 || !addButton(out[len(out)-1], btn) {
					return nil, fmt.Errorf("%w at %s", ErrOrphanButton, seg.Path)
				}
			}
		}
		return out, nil
	}
}

func validTarget(target job.Target) bool {
	switch t := target.(type) {
	case Thread:
		return t.ID != ""
	case Connection:
		return t.ID != ""
	default:
		return false
	}
}

func newJob(target job.Target, key, method string, params map[string]any) *job.Job {
	return &job.Job{
		Key:     key,
		Target:  target,
		Request: job.Request{Method: method, Params: params},
	}
}

func unitJob(target job.Target, key string, v any) (*job.Job, error) {
	switch u := v.(type) {
	case Image:
		src := u.URL
		if src == "" {
			if len(u.Data) == 0 {
				return nil, errors.New("image has no url or data")
			}
			ct := u.ContentType
			if ct == "" {
				ct = "application/octet-stream"
			}
			src = "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(u.Data)
		}
		params := map[string]any{"url": src}
		if u.Alt != "" {
			params["alt"] = u.Alt
		}
		return newJob(target, key, "image", params), nil
	case Card:
		params := map[string]any{"title": u.Title}
		if u.Body != "" {
			params["body"] = u.Body
		}
		if u.ImageURL != "" {
			params["image_url"] = u.ImageURL
		}
		return newJob(target, key, "card", params), nil
	case Typing:
		return newJob(target, key, "typing", map[string]any{}), nil
	case Call:
		if u.Method == "" {
			return nil, errors.New("call has no method")
		}
		params := make(map[string]any, len(u.Params))
		for k, v := range u.Params {
			params[k] = v
		}
		return newJob(target, key, u.Method, params), nil
	default:
		return nil, fmt.Errorf("unsupported unit %T", v)
	}
}

// addButton appends btn to a message or card job.
func addButton(j *job.Job, btn Button) bool {
	switch j.Request.Method {
	case "message", "card":
	default:
		return false
	}
	buttons, _ := j.Request.Params["buttons"].([]Button)
	j.Request.Params["buttons"] = append(buttons, btn)
	return true
}

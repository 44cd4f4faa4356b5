package twitter

import (
	"fmt"
	"strings"

	"github.com/xraph/parley"
	"github.com/xraph/parley/engine"
	"github.com/xraph/parley/job"
	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/render"
)

// API paths.
const (
	tweetsPath   = "2/tweets"
	uploadPath   = "1.1/media/upload.json"
	metadataPath = "1.1/media/metadata/create.json"
)

// dmPath returns the path that sends a direct message to participant.
func dmPath(participant string) string {
	return "2/dm_conversations/with/" + participant + "/messages"
}

// messagePath returns the path a message to target is posted to.
func messagePath(target job.Target) string {
	if dm, ok := target.(DirectMessageTarget); ok {
		return dmPath(dm.ParticipantID)
	}
	return tweetsPath
}

// jobs returns the factory for one render. All jobs of a render share one
// key: the tweet replied to, a fresh thread key for new tweets, or the DM
// participant.
func (b *Bot) jobs() engine.JobFactory {
	return func(target job.Target, segments []render.Segment) ([]*job.Job, error) {
		var (
			key   string
			limit int
		)
		switch t := target.(type) {
		case TweetTarget:
			if t.ReplyTo != "" {
				key = "twitter.thread." + t.ReplyTo
			} else {
				key = "twitter.thread." + b.keys.Next()
			}
			limit = MaxTweetLength
		case DirectMessageTarget:
			if t.ParticipantID == "" {
				return nil, fmt.Errorf("%w: direct message without participant", parley.ErrInvalidJob)
			}
			key = "twitter.dm." + t.ParticipantID
			limit = MaxDirectMessageLength
		default:
			return nil, fmt.Errorf("%w: twitter cannot send to %T", parley.ErrInvalidJob, target)
		}

		var out []*job.Job
		for _, seg := range segments {
			switch seg.Kind {
			case render.KindText:
				for _, chunk := range platform.SplitText(seg.Text(), limit) {
					if text := strings.TrimSpace(chunk); text != "" {
						out = append(out, messageJob(key, target, text))
					}
				}
			case render.KindUnit:
				j, err := unitJob(key, target, seg.Value)
				if err != nil {
					return nil, fmt.Errorf("twitter: %s: %w", seg.Path, err)
				}
				out = append(out, j)
			case render.KindPart:
				return nil, fmt.Errorf("twitter: %s: parts are not supported", seg.Path)
			}
		}
		return out, nil
	}
}

func messageJob(key string, target job.Target, text string) *job.Job {
	return &job.Job{
		Key:           key,
		Target:        target,
		Request:       job.Request{Path: messagePath(target), Params: map[string]any{"text": text}},
		RefreshTarget: refresh,
	}
}

func unitJob(key string, target job.Target, v any) (*job.Job, error) {
	switch u := v.(type) {
	case Media:
		return mediaJob(key, target, u)
	case *Media:
		return mediaJob(key, target, *u)
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
			Key:     key,
			Target:  target,
			Request: job.Request{Method: method, Path: u.Path, Params: params},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported unit %T", v)
	}
}

func mediaJob(key string, target job.Target, m Media) (*job.Job, error) {
	if len(m.Data) == 0 {
		return nil, fmt.Errorf("media %q has no data", m.Name)
	}
	name := m.Name
	if name == "" {
		name = "media"
	}
	category := m.Category
	if category == "" {
		category = mediaCategory(m.ContentType, target)
	}

	upload := job.Request{
		Path:   uploadPath,
		Params: map[string]any{"media_category": category},
		Files: []job.File{{
			Field:       "media",
			Name:        name,
			ContentType: m.ContentType,
			Data:        platform.Bytes(m.Data),
		}},
	}
	if m.AltText != "" {
		upload.Params["alt_text"] = m.AltText
	}

	params := map[string]any{}
	if m.Text != "" {
		params["text"] = m.Text
	}
	return &job.Job{
		Key:           key,
		Target:        target,
		Request:       job.Request{Path: messagePath(target), Params: params},
		Dependencies:  []job.Dependency{{Upload: &upload}},
		Finalize:      attachMedia,
		RefreshTarget: refresh,
	}, nil
}

// attachMedia merges the uploaded media id into the message params. The
// transport places it according to the target: media.media_ids for
// tweets, attachments for direct messages.
func attachMedia(req job.Request, deps []job.Result) (job.Request, error) {
	var up struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := deps[0].Decode(&up); err != nil {
		return req, fmt.Errorf("decode media upload: %w", err)
	}
	if up.MediaIDString == "" {
		return req, fmt.Errorf("media upload returned no media_id_string")
	}
	req.Params["media_ids"] = []string{up.MediaIDString}
	return req, nil
}

// refresh turns a created tweet into the reply target of the next job.
// Direct messages do not chain, so they refresh to nil.
func refresh(current job.Target, res job.Result) job.Target {
	if _, ok := current.(TweetTarget); !ok {
		return nil
	}
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := res.Decode(&created); err != nil || created.Data.ID == "" {
		return nil
	}
	return TweetTarget{ReplyTo: created.Data.ID}
}

func mediaCategory(contentType string, target job.Target) string {
	prefix := "tweet"
	if _, ok := target.(DirectMessageTarget); ok {
		prefix = "dm"
	}
	switch {
	case contentType == "image/gif":
		return prefix + "_gif"
	case strings.HasPrefix(contentType, "video/"):
		return prefix + "_video"
	default:
		return prefix + "_image"
	}
}

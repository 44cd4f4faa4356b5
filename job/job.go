package job

import (
	"fmt"
	"io"

	"github.com/xraph/parley"
	"github.com/xraph/parley/id"
)

// Target is the opaque address a job's request is directed at, such as a
// chat, a tweet thread, or a webview connection.
type Target interface {
	// UID returns a stable identifier for the target, used in logs,
	// traces, and as the basis of default keys.
	UID() string
}

// File is a binary attachment uploaded together with a request.
type File struct {
	// Field is the multipart field name the platform expects.
	Field string
	Name  string
	// ContentType defaults to application/octet-stream when empty.
	ContentType string
	Data        io.Reader
}

// Request is a platform API call. Its interpretation belongs to the
// platform transport; the dispatch core never looks inside.
type Request struct {
	Method string
	Path   string
	Params map[string]any
	Files  []File
}

// Clone returns a copy whose Params map may be modified without affecting
// the original. Nested values are shared.
func (r Request) Clone() Request {
	out := r
	if r.Params != nil {
		out.Params = make(map[string]any, len(r.Params))
		for k, v := range r.Params {
			out.Params[k] = v
		}
	}
	if r.Files != nil {
		out.Files = append([]File(nil), r.Files...)
	}
	return out
}

// Dependency is a result a job needs before its request can be finalized.
//
// When Tag names a result registered by an earlier job of the same key,
// that result is used. Otherwise Upload, if set, is executed first and its
// result is used (and registered under Tag when Tag is non-empty).
type Dependency struct {
	Tag    string
	Upload *Request
}

// FinalizeFunc merges resolved dependency results, in declaration order,
// into a copy of the request.
type FinalizeFunc func(req Request, deps []Result) (Request, error)

// RefreshFunc computes the target for the next job of the same key from
// the target this job used and the result it produced. Returning nil makes
// the next job fall back to its own static target.
type RefreshFunc func(current Target, res Result) Target

// Job is one outbound platform API call.
type Job struct {
	ID id.JobID

	// Key orders jobs: jobs sharing a non-empty key execute strictly one
	// at a time in submission order. Usually one key per conversation.
	Key string

	Target  Target
	Request Request

	Dependencies []Dependency
	Finalize     FinalizeFunc

	// Register makes this job's result available to later jobs of the
	// same key under the given tag.
	Register string

	RefreshTarget RefreshFunc

	// Meta carries platform annotations that are never sent on the wire,
	// such as the name an uploaded asset is cached under.
	Meta map[string]string
}

// SetMeta sets an annotation, allocating Meta on first use.
func (j *Job) SetMeta(k, v string) {
	if j.Meta == nil {
		j.Meta = make(map[string]string)
	}
	j.Meta[k] = v
}

// Validate reports programmer errors in the job definition. The returned
// error wraps parley.ErrInvalidJob.
func (j *Job) Validate() error {
	switch {
	case j == nil:
		return fmt.Errorf("%w: nil job", parley.ErrInvalidJob)
	case j.Target == nil:
		return fmt.Errorf("%w: job %s has no target", parley.ErrInvalidJob, j.describe())
	case len(j.Dependencies) > 0 && j.Finalize == nil:
		return fmt.Errorf("%w: job %s declares dependencies without a finalize hook", parley.ErrInvalidJob, j.describe())
	case j.RefreshTarget != nil && j.Key == "":
		return fmt.Errorf("%w: job %s refreshes its target but has no key", parley.ErrInvalidJob, j.describe())
	case j.Register != "" && j.Key == "":
		return fmt.Errorf("%w: job %s registers a result but has no key", parley.ErrInvalidJob, j.describe())
	}
	for i, dep := range j.Dependencies {
		if dep.Tag == "" && dep.Upload == nil {
			return fmt.Errorf("%w: job %s dependency %d has neither tag nor upload", parley.ErrInvalidJob, j.describe(), i)
		}
		if dep.Tag != "" && dep.Upload == nil && j.Key == "" {
			return fmt.Errorf("%w: job %s consumes tag %q but has no key", parley.ErrInvalidJob, j.describe(), dep.Tag)
		}
	}
	return nil
}

func (j *Job) describe() string {
	if j.Request.Method != "" {
		return j.Request.Method
	}
	if j.Request.Path != "" {
		return j.Request.Path
	}
	return "<unnamed>"
}

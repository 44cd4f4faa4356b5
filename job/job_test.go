package job_test

import (
	"errors"
	"testing"

	"github.com/xraph/parley"
	"github.com/xraph/parley/job"
)

type chat string

func (c chat) UID() string { return string(c) }

func TestValidate(t *testing.T) {
	finalize := func(req job.Request, _ []job.Result) (job.Request, error) { return req, nil }
	refresh := func(t job.Target, _ job.Result) job.Target { return t }

	tests := []struct {
		name    string
		job     *job.Job
		wantErr bool
	}{
		{"nil job", nil, true},
		{"no target", &job.Job{}, true},
		{"plain", &job.Job{Target: chat("c")}, false},
		{"deps without finalize", &job.Job{
			Target:       chat("c"),
			Dependencies: []job.Dependency{{Upload: &job.Request{}}},
		}, true},
		{"empty dependency", &job.Job{
			Target:       chat("c"),
			Key:          "k",
			Dependencies: []job.Dependency{{}},
			Finalize:     finalize,
		}, true},
		{"tag consumer without key", &job.Job{
			Target:       chat("c"),
			Dependencies: []job.Dependency{{Tag: "media"}},
			Finalize:     finalize,
		}, true},
		{"upload dependency", &job.Job{
			Target:       chat("c"),
			Dependencies: []job.Dependency{{Upload: &job.Request{Path: "/media"}}},
			Finalize:     finalize,
		}, false},
		{"refresh without key", &job.Job{Target: chat("c"), RefreshTarget: refresh}, true},
		{"refresh with key", &job.Job{Target: chat("c"), Key: "k", RefreshTarget: refresh}, false},
		{"register without key", &job.Job{Target: chat("c"), Register: "tag"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr {
				if !errors.Is(err, parley.ErrInvalidJob) {
					t.Fatalf("expected ErrInvalidJob, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRequestClone(t *testing.T) {
	orig := job.Request{Method: "send", Params: map[string]any{"a": 1}}
	c := orig.Clone()
	c.Params["b"] = 2

	if _, ok := orig.Params["b"]; ok {
		t.Fatal("clone shares params map with original")
	}
}

func TestNewBatchResult(t *testing.T) {
	boom := errors.New("boom")
	ok := job.Succeeded(job.NewResult(map[string]int{"id": 1}))
	bad := job.Failed(boom)

	res := job.NewBatchResult([]*job.Outcome{&ok, &bad, &ok})
	if res.Success {
		t.Fatal("expected Success=false")
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], boom) {
		t.Fatalf("errors = %v", res.Errors)
	}

	results := res.Results()
	if results[1] != nil {
		t.Error("failed job should have nil result")
	}
	var body struct{ ID int }
	if err := results[2].Decode(&body); err != nil || body.ID != 1 {
		t.Errorf("decode = %+v, %v", body, err)
	}

	all := job.NewBatchResult([]*job.Outcome{&ok})
	if !all.Success || len(all.Errors) != 0 {
		t.Errorf("expected full success, got %+v", all)
	}

	untouched := job.NewBatchResult([]*job.Outcome{&ok, nil})
	if untouched.Success {
		t.Error("never-attempted job must make the batch unsuccessful")
	}
}

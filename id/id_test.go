package id_test

import (
	"strings"
	"testing"
	"time"

	"github.com/xraph/parley/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"JobID", id.NewJobID, "job_"},
		{"BatchID", id.NewBatchID, "batch_"},
		{"WorkerID", id.NewWorkerID, "wkr_"},
		{"ConnectionID", id.NewConnectionID, "conn_"},
		{"FrameID", id.NewFrameID, "frame_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	original := id.NewJobID()

	parsed, err := id.ParseWithPrefix(original.String(), id.PrefixJob)
	if err != nil {
		t.Fatalf("ParseWithPrefix: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("got %q, want %q", parsed, original)
	}

	if _, err := id.ParseWithPrefix(original.String(), id.PrefixBatch); err == nil {
		t.Error("expected prefix mismatch error")
	}
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Fatal("zero ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("nil ID string = %q, want empty", i.String())
	}
	b, err := i.MarshalText()
	if err != nil || len(b) != 0 {
		t.Errorf("nil ID MarshalText() = (%q, %v), want empty", b, err)
	}
}

func TestTextRoundTrip(t *testing.T) {
	want := id.NewBatchID()
	b, err := want.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var got id.ID
	if err := got.UnmarshalText(b); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if got.String() != want.String() || got.Prefix() != id.PrefixBatch {
		t.Errorf("got %q, want %q", got, want)
	}
	if err := got.UnmarshalText(nil); err != nil || !got.IsNil() {
		t.Errorf("empty text should reset to Nil, err=%v", err)
	}
	if err := got.UnmarshalText([]byte("not an id")); err == nil {
		t.Error("expected error for malformed text")
	}
}

func TestTypeIDGenerator(t *testing.T) {
	g := id.TypeIDGenerator{}
	a, b := g.Next(), g.Next()
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if !strings.HasPrefix(a, "key_") {
		t.Errorf("expected default key_ prefix, got %q", a)
	}
}

func TestSequenceGenerator(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := &id.SequenceGenerator{Prefix: "k", Now: func() time.Time { return fixed }}

	if got := g.Next(); got != "k1700000000000-1" {
		t.Errorf("first = %q", got)
	}
	if got := g.Next(); got != "k1700000000000-2" {
		t.Errorf("second = %q", got)
	}
}

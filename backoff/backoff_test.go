package backoff_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xraph/parley/backoff"
)

func TestConstant(t *testing.T) {
	s := backoff.NewConstant(2 * time.Second)
	for attempt := 1; attempt <= 3; attempt++ {
		if got := s.Delay(attempt); got != 2*time.Second {
			t.Errorf("Delay(%d) = %v", attempt, got)
		}
	}
}

func TestExponential(t *testing.T) {
	s := backoff.NewExponential(100*time.Millisecond, time.Second)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, time.Second},
	}
	for _, tt := range tests {
		if got := s.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialWithJitter_Bounded(t *testing.T) {
	s := backoff.NewExponentialWithJitter(100*time.Millisecond, 300*time.Millisecond)
	for range 100 {
		if got := s.Delay(4); got < 0 || got > 300*time.Millisecond {
			t.Fatalf("jittered delay %v out of range", got)
		}
	}
}

type throttled struct{ wait time.Duration }

func (e throttled) Error() string             { return "throttled" }
func (e throttled) RetryAfter() time.Duration { return e.wait }

func TestFor_PrefersRetryAfter(t *testing.T) {
	s := backoff.NewConstant(time.Second)

	wrapped := fmt.Errorf("send: %w", throttled{wait: 7 * time.Second})
	if got := backoff.For(s, 1, wrapped); got != 7*time.Second {
		t.Errorf("For(retry-after) = %v", got)
	}
	if got := backoff.For(s, 1, throttled{}); got != time.Second {
		t.Errorf("zero retry-after should fall back to strategy, got %v", got)
	}
	if got := backoff.For(s, 1, errors.New("plain")); got != time.Second {
		t.Errorf("For(plain) = %v", got)
	}
	if got := backoff.For(nil, 1, errors.New("plain")); got != 0 {
		t.Errorf("nil strategy = %v", got)
	}
}

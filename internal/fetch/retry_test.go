package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net op failed" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return e.timeout }

func TestShouldRetry(t *testing.T) {
	p := NewExponentialRetryPolicy(3, 10*time.Millisecond, 100*time.Millisecond)

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{name: "nil error", err: nil, attempt: 1, want: false},
		{name: "generic error retries", err: errors.New("boom"), attempt: 1, want: true},
		{name: "attempts exhausted", err: errors.New("boom"), attempt: 3, want: false},
		{name: "context canceled", err: fmt.Errorf("fetch: %w", context.Canceled), attempt: 1, want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, attempt: 1, want: false},
		{name: "robots refusal", err: fmt.Errorf("gate: %w", ErrRobotsDisallowed), attempt: 1, want: false},
		{name: "rendering disabled", err: ErrRenderingDisabled, attempt: 1, want: false},
		{name: "net timeout", err: timeoutErr{timeout: true}, attempt: 1, want: true},
		{name: "net non-timeout", err: timeoutErr{timeout: false}, attempt: 1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldRetry(tt.err, tt.attempt); got != tt.want {
				t.Fatalf("expected %v got %v", tt.want, got)
			}
		})
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := NewExponentialRetryPolicy(5, 100*time.Millisecond, 400*time.Millisecond)

	for attempt := 1; attempt <= 4; attempt++ {
		d := p.Backoff(attempt)
		if d <= 0 {
			t.Fatalf("attempt %d: non-positive backoff %v", attempt, d)
		}
		if d > 400*time.Millisecond {
			t.Fatalf("attempt %d: backoff %v exceeds cap", attempt, d)
		}
	}

	// Half of the scaled delay is guaranteed even before jitter.
	if d := p.Backoff(2); d < 200*time.Millisecond {
		t.Fatalf("attempt 2 backoff %v below deterministic floor", d)
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := NewExponentialRetryPolicy(0, 0, 0)
	if !p.ShouldRetry(errors.New("boom"), 2) {
		t.Fatal("defaulted policy should allow a second attempt")
	}
	if p.ShouldRetry(errors.New("boom"), 3) {
		t.Fatal("defaulted policy should stop after three attempts")
	}
}

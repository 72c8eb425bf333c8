package upload

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProgressReachesHundred(t *testing.T) {
	p := Progress{Interval: time.Millisecond, MaxStep: 10, Rand: func() float64 { return 0.5 }}
	var got []int
	if err := p.Run(context.Background(), func(pct int) { got = append(got, pct) }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("ticks = %d, want 20", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("progress went backwards: %v", got)
		}
	}
	if got[len(got)-1] != 100 {
		t.Errorf("last report = %d", got[len(got)-1])
	}
}

func TestProgressClampsOvershoot(t *testing.T) {
	p := Progress{Interval: time.Millisecond, MaxStep: 70, Rand: func() float64 { return 0.99 }}
	var last int
	if err := p.Run(context.Background(), func(pct int) { last = pct }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if last != 100 {
		t.Errorf("last = %d, want 100", last)
	}
}

func TestProgressCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Progress{Interval: time.Hour, MaxStep: 10}
	if err := p.Run(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

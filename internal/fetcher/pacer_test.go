package fetcher

import (
	"context"
	"testing"
	"time"
)

func fixedPacer(now time.Time) *Pacer {
	p := NewPacer(800*time.Millisecond, 400*time.Millisecond, 1.5)
	p.now = func() time.Time { return now }
	p.random = func() float64 { return 0.5 }
	return p
}

func TestPacerSpacesSameHost(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	p := fixedPacer(now)

	if d := p.reserve("www.byha.org"); d != 0 {
		t.Fatalf("first request should not wait, got %v", d)
	}
	if d := p.reserve("www.byha.org"); d != time.Second {
		t.Errorf("second request wait = %v, want 1s", d)
	}
	if d := p.reserve("www.byha.org"); d != 2*time.Second {
		t.Errorf("third request wait = %v, want 2s (slots queue up)", d)
	}
	if d := p.reserve("www.tonkahockey.org"); d != 0 {
		t.Errorf("other host should not wait, got %v", d)
	}
}

func TestPacerBacksOffThrottledHost(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	p := fixedPacer(now)

	p.reserve("h")
	p.RecordThrottle("h")
	p.RecordThrottle("h")
	// (800 + 0.5*400) * 1.5^2 = 2250ms
	if d := p.reserve("h"); d != 2250*time.Millisecond {
		t.Errorf("throttled wait = %v, want 2.25s", d)
	}

	p.RecordSuccess("h")
	if got := p.ErrorCount("h"); got != 0 {
		t.Errorf("error count after success = %d, want 0", got)
	}
}

func TestPacerWaitHonorsContext(t *testing.T) {
	p := NewPacer(time.Hour, 0, 1)
	p.reserve("slow")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx, "slow"); err == nil {
		t.Error("expected cancellation error")
	}
}

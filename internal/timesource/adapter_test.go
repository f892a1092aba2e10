package timesource

import (
	"context"
	"errors"
	"testing"
	"time"

	"token-vesting-go/internal/models"
)

type stubOracle struct {
	start, end uint64
	err        error
	block      bool
	calls      int
}

func (o *stubOracle) TimeWindow(ctx context.Context, _ models.Account) (uint64, uint64, error) {
	o.calls++
	if o.block {
		<-ctx.Done()
		return 0, 0, ctx.Err()
	}
	return o.start, o.end, o.err
}

var oracleAccount = models.AccountFromLabel("oracle")

func TestAdapterWindow(t *testing.T) {
	fallback := models.Window{Start: 100, End: 200}
	external := models.ExternalSchedule(oracleAccount, fallback)

	tests := []struct {
		name     string
		oracle   Oracle
		schedule models.VestingSchedule
		want     models.Window
		wantOK   bool
	}{
		{"instant has no window", &stubOracle{}, models.InstantSchedule(), models.Window{}, false},
		{"linear uses its own window", &stubOracle{start: 1, end: 2}, models.LinearSchedule(10, 20), models.Window{Start: 10, End: 20}, true},
		{"external uses oracle reply", &stubOracle{start: 300, end: 400}, external, models.Window{Start: 300, End: 400}, true},
		{"oracle error falls back", &stubOracle{err: errors.New("reverted")}, external, fallback, true},
		{"inverted reply falls back", &stubOracle{start: 500, end: 400}, external, fallback, true},
		{"no oracle falls back", nil, external, fallback, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(NewManualClock(0), tt.oracle, time.Second)
			got, ok := a.Window(context.Background(), tt.schedule)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.want {
				t.Errorf("expected window %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestAdapterWindow_TimeoutFallsBack(t *testing.T) {
	oracle := &stubOracle{block: true}
	a := NewAdapter(NewManualClock(0), oracle, 20*time.Millisecond)

	fallback := models.Window{Start: 1, End: 2}
	got, _ := a.Window(context.Background(), models.ExternalSchedule(oracleAccount, fallback))
	if got != fallback {
		t.Fatalf("expected fallback %+v, got %+v", fallback, got)
	}
	if oracle.calls != 1 {
		t.Errorf("expected one oracle call, got %d", oracle.calls)
	}
}

func TestNewAdapter_DefaultTimeout(t *testing.T) {
	a := NewAdapter(&SystemClock{}, nil, 0)
	if a.Timeout != DefaultOracleTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultOracleTimeout, a.Timeout)
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(1000)
	c.Advance(500)
	if got := c.Now(); got != 1500 {
		t.Fatalf("expected 1500, got %d", got)
	}
	c.Set(1200)
	if got := c.Now(); got != 1500 {
		t.Errorf("clock moved backwards to %d", got)
	}
	c.Set(2000)
	if got := c.Now(); got != 2000 {
		t.Errorf("expected 2000, got %d", got)
	}
}

func TestSystemClock_NonDecreasing(t *testing.T) {
	c := &SystemClock{}
	prev := c.Now()
	for i := 0; i < 1000; i++ {
		now := c.Now()
		if now < prev {
			t.Fatalf("clock went backwards: %d < %d", now, prev)
		}
		prev = now
	}

	c.last = prev + uint64(time.Hour.Milliseconds())
	if got := c.Now(); got != c.last {
		t.Errorf("expected guarded value %d, got %d", c.last, got)
	}
}

package delay

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReal_WaitElapses(t *testing.T) {
	start := time.Now()
	if err := (Real{}).Wait(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("wait returned too early: %s", elapsed)
	}
}

func TestReal_WaitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (Real{}).Wait(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReal_ZeroDuration(t *testing.T) {
	if err := (Real{}).Wait(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInstant_RecordsWaits(t *testing.T) {
	d := &Instant{}

	if err := d.Wait(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.Wait(context.Background(), 800*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waits := d.Waits()
	if len(waits) != 2 || waits[0] != time.Second || waits[1] != 800*time.Millisecond {
		t.Fatalf("unexpected waits: %v", waits)
	}
}

package engine

import (
	"testing"
	"time"
)

func TestTimerCountsDownToExpiry(t *testing.T) {
	tm := NewTimer(time.Millisecond)
	cmd := tm.Start(2)
	if cmd == nil || !tm.Running() {
		t.Fatalf("expected running timer with a tick")
	}
	expired, cmd := tm.Update(cmd().(TickMsg))
	if expired || tm.Remaining() != 1 || cmd == nil {
		t.Fatalf("unexpected state after first tick: expired=%v remaining=%d", expired, tm.Remaining())
	}
	expired, cmd = tm.Update(cmd().(TickMsg))
	if !expired || tm.Remaining() != 0 || cmd != nil || tm.Running() {
		t.Fatalf("expected expiry, got expired=%v remaining=%d", expired, tm.Remaining())
	}
}

func TestTimerIgnoresStaleTicks(t *testing.T) {
	tm := NewTimer(time.Millisecond)
	first := tm.Start(5)
	stale := first().(TickMsg)
	restart := tm.Start(5)

	if expired, cmd := tm.Update(stale); expired || cmd != nil || tm.Remaining() != 5 {
		t.Fatalf("stale tick was applied: remaining=%d", tm.Remaining())
	}
	if _, cmd := tm.Update(restart().(TickMsg)); cmd == nil || tm.Remaining() != 4 {
		t.Fatalf("current tick was not applied: remaining=%d", tm.Remaining())
	}
}

func TestTimerPauseKeepsRemaining(t *testing.T) {
	tm := NewTimer(time.Millisecond)
	cmd := tm.Start(3)
	tm.Pause()
	if expired, next := tm.Update(cmd().(TickMsg)); expired || next != nil {
		t.Fatalf("paused timer accepted a tick")
	}
	if tm.Remaining() != 3 || tm.Running() {
		t.Fatalf("expected 3 seconds paused, got %d running=%v", tm.Remaining(), tm.Running())
	}
}

func TestTimerIgnoresOtherTimers(t *testing.T) {
	a := NewTimer(time.Millisecond)
	b := NewTimer(time.Millisecond)
	a.Start(3)
	cmd := b.Start(3)
	if _, next := a.Update(cmd().(TickMsg)); next != nil || a.Remaining() != 3 {
		t.Fatalf("tick from another timer was applied")
	}
}

func TestTimerStop(t *testing.T) {
	tm := NewTimer(time.Millisecond)
	cmd := tm.Start(3)
	tm.Stop()
	if _, next := tm.Update(cmd().(TickMsg)); next != nil {
		t.Fatalf("stopped timer scheduled a tick")
	}
	if tm.Remaining() != 0 {
		t.Fatalf("expected remaining reset, got %d", tm.Remaining())
	}
}

package engine

import (
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

var lastTimerID int64

func nextTimerID() int {
	return int(atomic.AddInt64(&lastTimerID, 1))
}

// TickMsg is a Round Timer tick. Ticks from a stopped, paused or restarted
// countdown are ignored.
type TickMsg struct {
	ID  int
	tag int
}

// Timer is a one-second countdown. At most one scheduled tick is honoured
// at a time: every state change bumps the tag, invalidating ticks already in
// flight.
type Timer struct {
	id        int
	tag       int
	interval  time.Duration
	remaining int
	running   bool
}

// NewTimer returns a stopped timer ticking at interval.
func NewTimer(interval time.Duration) Timer {
	if interval <= 0 {
		interval = time.Second
	}
	return Timer{id: nextTimerID(), interval: interval}
}

// ID identifies the timer in TickMsg.
func (t Timer) ID() int {
	return t.id
}

// Remaining is the number of whole seconds left.
func (t Timer) Remaining() int {
	return t.remaining
}

// Running reports whether ticks are being honoured.
func (t Timer) Running() bool {
	return t.running
}

// Start cancels any pending tick and counts down from seconds.
func (t *Timer) Start(seconds int) tea.Cmd {
	if seconds < 0 {
		seconds = 0
	}
	t.remaining = seconds
	t.running = true
	t.tag++
	return t.tick()
}

// Pause stops the countdown and keeps the remaining time.
func (t *Timer) Pause() {
	if !t.running {
		return
	}
	t.running = false
	t.tag++
}

// Stop cancels the countdown.
func (t *Timer) Stop() {
	t.running = false
	t.remaining = 0
	t.tag++
}

// Update consumes a tick. It reports expired when the countdown reaches
// zero; otherwise it schedules the next tick.
func (t *Timer) Update(msg TickMsg) (expired bool, cmd tea.Cmd) {
	if msg.ID != t.id || msg.tag != t.tag || !t.running {
		return false, nil
	}
	if t.remaining > 0 {
		t.remaining--
	}
	t.tag++
	if t.remaining == 0 {
		t.running = false
		return true, nil
	}
	return false, t.tick()
}

func (t Timer) tick() tea.Cmd {
	id, tag := t.id, t.tag
	return tea.Tick(t.interval, func(time.Time) tea.Msg {
		return TickMsg{ID: id, tag: tag}
	})
}

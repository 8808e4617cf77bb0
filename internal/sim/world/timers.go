package world

import (
	"sort"
	"time"
)

type timer struct {
	due uint64
	seq uint64
	fn  func()
}

// timerQueue orders callbacks by due tick, then by registration.
type timerQueue struct {
	q   []timer
	seq uint64
}

func (t *timerQueue) add(due uint64, fn func()) {
	t.seq++
	i := sort.Search(len(t.q), func(i int) bool { return t.q[i].due > due })
	t.q = append(t.q, timer{})
	copy(t.q[i+1:], t.q[i:])
	t.q[i] = timer{due: due, seq: t.seq, fn: fn}
}

func (t *timerQueue) runDue(nowTick uint64) int {
	n := 0
	for len(t.q) > 0 && t.q[0].due <= nowTick {
		next := t.q[0]
		t.q[0] = timer{}
		t.q = t.q[1:]
		next.fn()
		n++
	}
	return n
}

func (t *timerQueue) Len() int { return len(t.q) }

// Now is the world clock: the epoch plus elapsed ticks.
func (w *World) Now() time.Time {
	return w.cfg.Epoch.Add(time.Duration(w.tick.Load()) * w.TickDuration())
}

// AfterFunc runs fn on the world loop once d has elapsed, rounded up to
// whole ticks. Loop-only.
func (w *World) AfterFunc(d time.Duration, fn func()) {
	if fn == nil {
		return
	}
	td := w.TickDuration()
	ticks := uint64(0)
	if d > 0 {
		ticks = uint64((d + td - 1) / td)
	}
	w.timers.add(w.tick.Load()+ticks, fn)
}

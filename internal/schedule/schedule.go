// Package schedule runs callbacks after a delay. Components take a
// Scheduler instead of calling time.AfterFunc so tests can drive time by
// hand.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Handle cancels a scheduled callback.
type Handle interface {
	// Cancel prevents the callback from running. It reports whether the
	// callback was still pending.
	Cancel() bool
}

// Scheduler runs fn once after d has elapsed.
type Scheduler interface {
	After(d time.Duration, fn func()) Handle
}

// Real schedules on the wall clock.
type Real struct{}

func (Real) After(d time.Duration, fn func()) Handle {
	return realHandle{timer: time.AfterFunc(d, fn)}
}

type realHandle struct {
	timer *time.Timer
}

func (h realHandle) Cancel() bool {
	return h.timer.Stop()
}

// Group tracks handles so they can all be cancelled at once, for example
// when their owner is torn down.
type Group struct {
	mu      sync.Mutex
	handles map[*groupHandle]struct{}
}

type groupHandle struct {
	g     *Group
	inner Handle
}

func (h *groupHandle) Cancel() bool {
	h.g.forget(h)
	return h.inner.Cancel()
}

// After schedules fn on s and remembers the handle until it fires or is
// cancelled.
func (g *Group) After(s Scheduler, d time.Duration, fn func()) Handle {
	h := &groupHandle{g: g}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handles == nil {
		g.handles = make(map[*groupHandle]struct{})
	}
	g.handles[h] = struct{}{}
	h.inner = s.After(d, func() {
		g.forget(h)
		fn()
	})
	return h
}

// CancelAll cancels every pending handle and returns how many were pending.
func (g *Group) CancelAll() int {
	g.mu.Lock()
	pending := g.handles
	g.handles = nil
	g.mu.Unlock()

	n := 0
	for h := range pending {
		if h.inner != nil && h.inner.Cancel() {
			n++
		}
	}
	return n
}

// Len returns the number of callbacks still pending.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}

func (g *Group) forget(h *groupHandle) {
	g.mu.Lock()
	delete(g.handles, h)
	g.mu.Unlock()
}

// Manual is a Scheduler whose clock only moves when Advance is called.
// Callbacks run synchronously on the goroutine calling Advance.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	m        *Manual
	due      time.Duration
	seq      int
	fn       func()
	canceled bool
	fired    bool
}

func (t *manualTask) Cancel() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.canceled || t.fired {
		return false
	}
	t.canceled = true
	return true
}

// NewManual returns a Manual clock at time zero.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) After(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTask{m: m, due: m.now + d, seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance moves the clock forward by d, running every callback that comes
// due in deadline order. Callbacks scheduled while advancing run too if
// they fall inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// Now returns the elapsed manual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of callbacks that have neither fired nor been
// cancelled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.canceled && !t.fired {
			n++
		}
	}
	return n
}

func (m *Manual) nextDue(target time.Duration) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.canceled && !t.fired {
			live = append(live, t)
		}
	}
	m.tasks = live

	sort.SliceStable(m.tasks, func(i, j int) bool {
		if m.tasks[i].due != m.tasks[j].due {
			return m.tasks[i].due < m.tasks[j].due
		}
		return m.tasks[i].seq < m.tasks[j].seq
	})

	if len(m.tasks) == 0 || m.tasks[0].due > target {
		return nil
	}
	t := m.tasks[0]
	t.fired = true
	if t.due > m.now {
		m.now = t.due
	}
	return t
}

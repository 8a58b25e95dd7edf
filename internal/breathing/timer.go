// Package breathing runs the 60-second box-breathing countdown.
package breathing

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/content"
	"github.com/xaenox/moodlift-bot/internal/models"
	"github.com/xaenox/moodlift-bot/internal/schedule"
)

const (
	TotalSeconds = 60
	CycleSeconds = 4
	PhaseCount   = 4
	TickInterval = time.Second
)

var (
	ErrNotOpen  = errors.New("breathing exercise is not open")
	ErrFinished = errors.New("breathing exercise already finished")
)

// Rand picks a quote index. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Snapshot is the visible state of the exercise.
type Snapshot struct {
	Language              models.Language
	Open                  bool
	TotalSecondsRemaining int
	CyclePhaseIndex       int
	CycleSecondsRemaining int
	Running               bool
	Finished              bool
	Quote                 string
}

// Observer is told about every change, after the timer lock is released.
type Observer interface {
	BreathingChanged(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) BreathingChanged(s Snapshot) { f(s) }

type Timer struct {
	table    *content.Table
	sched    schedule.Scheduler
	rng      Rand
	observer Observer
	logger   *zap.Logger

	mu    sync.Mutex
	state Snapshot
	tick  schedule.Handle
	gen   uint64
}

func NewTimer(table *content.Table, sched schedule.Scheduler, rng Rand, observer Observer, logger *zap.Logger) *Timer {
	if observer == nil {
		observer = ObserverFunc(func(Snapshot) {})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Timer{
		table:    table,
		sched:    sched,
		rng:      rng,
		observer: observer,
		logger:   logger,
	}
	t.state = idle(table.Default())
	return t
}

func idle(lang models.Language) Snapshot {
	return Snapshot{
		Language:              lang,
		TotalSecondsRemaining: TotalSeconds,
		CycleSecondsRemaining: CycleSeconds,
	}
}

// Open shows the exercise in lang, always starting from idle.
func (t *Timer) Open(lang models.Language) error {
	if !t.table.Supports(lang) {
		return fmt.Errorf("%w: %s", content.ErrUnknownLanguage, lang)
	}

	t.mu.Lock()
	t.stopLocked()
	t.state = idle(lang)
	t.state.Open = true
	s := t.state
	t.mu.Unlock()

	t.observer.BreathingChanged(s)
	return nil
}

// Close hides the exercise and resets it.
func (t *Timer) Close() {
	t.mu.Lock()
	wasOpen := t.state.Open
	t.stopLocked()
	t.state = idle(t.state.Language)
	s := t.state
	t.mu.Unlock()

	if wasOpen {
		t.observer.BreathingChanged(s)
	}
}

// Toggle starts a paused or idle countdown, or pauses a running one.
func (t *Timer) Toggle() error {
	t.mu.Lock()
	switch {
	case !t.state.Open:
		t.mu.Unlock()
		return ErrNotOpen
	case t.state.Finished:
		t.mu.Unlock()
		return ErrFinished
	}

	if t.state.Running {
		t.stopLocked()
		t.state.Running = false
	} else {
		t.state.Running = true
		t.scheduleLocked()
	}
	s := t.state
	t.mu.Unlock()

	t.observer.BreathingChanged(s)
	return nil
}

// Reset returns an open exercise to idle: 60 seconds, first phase, not
// finished.
func (t *Timer) Reset() error {
	t.mu.Lock()
	if !t.state.Open {
		t.mu.Unlock()
		return ErrNotOpen
	}
	t.stopLocked()
	t.state = idle(t.state.Language)
	t.state.Open = true
	s := t.state
	t.mu.Unlock()

	t.observer.BreathingChanged(s)
	return nil
}

// Tick advances a running countdown by one second.
func (t *Timer) Tick() {
	t.mu.Lock()
	if !t.state.Running {
		t.mu.Unlock()
		return
	}
	t.tickLocked()
	s := t.state
	t.mu.Unlock()

	t.observer.BreathingChanged(s)
}

func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) tickLocked() {
	t.state.CycleSecondsRemaining--
	if t.state.CycleSecondsRemaining == 0 {
		t.state.CyclePhaseIndex = (t.state.CyclePhaseIndex + 1) % PhaseCount
		t.state.CycleSecondsRemaining = CycleSeconds
	}

	t.state.TotalSecondsRemaining--
	if t.state.TotalSecondsRemaining > 0 {
		return
	}

	t.stopLocked()
	t.state.Running = false
	t.state.Finished = true
	quotes := t.table.MustBundle(t.state.Language).Breathing.Quotes
	t.state.Quote = quotes[t.rng.IntN(len(quotes))]
	t.logger.Debug("Breathing exercise finished", zap.String("language", string(t.state.Language)))
}

// scheduleLocked arms the next tick. A tick that fires after the generation
// moved on is ignored.
func (t *Timer) scheduleLocked() {
	gen := t.gen
	t.tick = t.sched.After(TickInterval, func() {
		t.mu.Lock()
		if gen != t.gen || !t.state.Running {
			t.mu.Unlock()
			return
		}
		t.tickLocked()
		if t.state.Running {
			t.scheduleLocked()
		}
		s := t.state
		t.mu.Unlock()

		t.observer.BreathingChanged(s)
	})
}

func (t *Timer) stopLocked() {
	t.gen++
	if t.tick != nil {
		t.tick.Cancel()
		t.tick = nil
	}
}

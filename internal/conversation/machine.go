// Package conversation drives one mood-assessment conversation: greeting,
// five rated questions, the scored summary, the breathing offer and free
// chat.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/moodlift-bot/internal/content"
	"github.com/xaenox/moodlift-bot/internal/models"
	"github.com/xaenox/moodlift-bot/internal/mood"
	"github.com/xaenox/moodlift-bot/internal/schedule"
)

// Config holds the pacing of a conversation.
type Config struct {
	Language       models.Language
	PacingDelay    time.Duration
	BreathingDelay time.Duration
	RevealDelay    time.Duration
	ReplyTimeout   time.Duration
	TTS            bool
}

// DefaultConfig returns the delays used in production.
func DefaultConfig() Config {
	return Config{
		Language:       models.English,
		PacingDelay:    800 * time.Millisecond,
		BreathingDelay: 500 * time.Millisecond,
		RevealDelay:    50 * time.Millisecond,
		ReplyTimeout:   30 * time.Second,
	}
}

// Assessment is the progress through the five questions.
type Assessment struct {
	QuestionIndex int
	Answers       []int
	Complete      bool
}

// State is a copy of the conversation at one instant.
type State struct {
	Language   models.Language
	Phase      Phase
	Messages   []models.Message
	Assessment Assessment
	Analysis   *mood.Analysis
	Loading    bool
	Pending    bool
	TTS        bool
	Accepts    Input
}

// Option customizes a Machine.
type Option func(*Machine)

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s schedule.Scheduler) Option {
	return func(m *Machine) { m.sched = s }
}

// WithSpawn replaces the goroutine used to await replies.
func WithSpawn(spawn func(func())) Option {
	return func(m *Machine) { m.spawn = spawn }
}

// WithIDGenerator replaces the message ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Machine) { m.newID = fn }
}

// WithClock replaces the message timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(m *Machine) { m.now = fn }
}

// Machine is safe for concurrent use. Effects are delivered after the
// internal lock is released, in the order the transitions happened.
type Machine struct {
	table   *content.Table
	replier Replier
	effects Effects
	logger  *zap.Logger
	cfg     Config

	sched schedule.Scheduler
	spawn func(func())
	newID func() string
	now   func() time.Time

	done   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	timers     schedule.Group
	epoch      uint64
	closed     bool
	lang       models.Language
	bundle     *content.Bundle
	phase      Phase
	history    []models.Message
	assessment Assessment
	analysis   *mood.Analysis
	pacing     bool
	loading    bool
	tts        bool
	outbox     []func(Effects)
	draining   bool
}

// New creates a machine. Call Begin to send the greeting.
func New(table *content.Table, replier Replier, effects Effects, logger *zap.Logger, cfg Config, opts ...Option) (*Machine, error) {
	if cfg.Language == "" {
		cfg.Language = table.Default()
	}
	bundle, err := table.Bundle(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, cfg.Language)
	}
	if effects == nil {
		effects = NopEffects{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Machine{
		table:   table,
		replier: replier,
		effects: effects,
		logger:  logger,
		cfg:     cfg,
		sched:   schedule.Real{},
		spawn:   func(fn func()) { go fn() },
		newID:   func() string { return uuid.New().String() },
		now:     time.Now,
		lang:    cfg.Language,
		bundle:  bundle,
		tts:     cfg.TTS,
	}
	m.done, m.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Begin resets the conversation and sends the greeting. The first question
// follows after the pacing delay.
func (m *Machine) Begin() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.resetLocked()
	m.beginLocked()
	m.unlockAndFlush()
	return nil
}

// SetLanguage switches the language and restarts the conversation from the
// greeting. Pending paced messages and replies are dropped.
func (m *Machine) SetLanguage(lang models.Language) error {
	bundle, err := m.table.Bundle(lang)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.resetLocked()
	m.lang = lang
	m.bundle = bundle
	m.beginLocked()
	m.logger.Info("Language changed", zap.String("language", string(lang)))
	m.unlockAndFlush()
	return nil
}

// SubmitRating answers the current assessment question from a button.
func (m *Machine) SubmitRating(rating int) error {
	return m.submitRating(rating, models.OriginButton)
}

// ChooseBreathing answers the breathing offer from a button.
func (m *Machine) ChooseBreathing(choice Choice) error {
	return m.chooseBreathing(choice, models.OriginButton)
}

// SubmitText sends a free-chat turn. The reply arrives asynchronously; the
// returned error only covers validation. The reply outlives ctx's
// cancellation and is bounded by the reply timeout, a reset and Close.
func (m *Machine) SubmitText(ctx context.Context, text string, origin models.Origin) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrMissingInput
	}

	m.mu.Lock()
	if err := m.acceptLocked(PhaseFreeChat); err != nil {
		m.mu.Unlock()
		return err
	}

	m.appendUserLocked(text, origin)
	if m.bundle.MentionsCrisis(text) {
		m.appendAssistantLocked(m.bundle.SafetyNotice)
	}
	m.loading = true
	m.emit(func(e Effects) { e.LoadingChanged(true) })

	epoch := m.epoch
	lang := m.lang
	m.unlockAndFlush()

	ctx = context.WithoutCancel(ctx)
	m.spawn(func() { m.awaitReply(ctx, epoch, text, lang) })
	return nil
}

// SubmitInput routes free-form input, typed or transcribed, by phase: a
// number answers the assessment, a localized yes or no answers the
// breathing offer, anything else in free chat gets a reply.
func (m *Machine) SubmitInput(ctx context.Context, text string, origin models.Origin) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrMissingInput
	}

	m.mu.Lock()
	phase, bundle, closed := m.phase, m.bundle, m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	switch phase {
	case PhaseGreetingAndFirstQuestion, PhaseAssessmentInProgress:
		rating, err := ParseRating(trimmed)
		if err != nil {
			return err
		}
		return m.submitRating(rating, origin)
	case PhaseAssessmentJustCompleted:
		return ErrBusy
	case PhaseAwaitingBreathingChoice:
		yes, ok := bundle.MatchChoice(trimmed)
		if !ok {
			return fmt.Errorf("%w: expected yes or no", ErrInputNotAccepted)
		}
		choice := ChoiceNo
		if yes {
			choice = ChoiceYes
		}
		return m.chooseBreathing(choice, origin)
	default:
		return m.SubmitText(ctx, trimmed, origin)
	}
}

// Gratitude appends the gratitude journaling prompt during free chat.
func (m *Machine) Gratitude() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.phase != PhaseFreeChat {
		m.mu.Unlock()
		return ErrInputNotAccepted
	}
	if m.pacing || m.loading {
		m.mu.Unlock()
		return ErrBusy
	}
	m.appendAssistantLocked(m.bundle.GratitudePrompt)
	m.unlockAndFlush()
	return nil
}

// SetTTS turns spoken assistant messages on or off.
func (m *Machine) SetTTS(on bool) {
	m.mu.Lock()
	m.tts = on
	m.mu.Unlock()
}

// TTS reports whether assistant messages are spoken.
func (m *Machine) TTS() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tts
}

// Language returns the current language.
func (m *Machine) Language() models.Language {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lang
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		Language: m.lang,
		Phase:    m.phase,
		Messages: append([]models.Message(nil), m.history...),
		Assessment: Assessment{
			QuestionIndex: m.assessment.QuestionIndex,
			Answers:       append([]int(nil), m.assessment.Answers...),
			Complete:      m.assessment.Complete,
		},
		Loading: m.loading,
		Pending: m.pacing,
		TTS:     m.tts,
		Accepts: m.acceptsLocked(),
	}
	if m.analysis != nil {
		a := *m.analysis
		a.Insights = append([]string(nil), a.Insights...)
		s.Analysis = &a
	}
	return s
}

// Close cancels pending timers and in-flight replies. Later calls return
// ErrClosed. A pending reply's loading indicator is switched off.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.epoch++
	m.timers.CancelAll()
	m.outbox = nil
	wasLoading := m.loading
	m.loading = false
	m.pacing = false
	m.mu.Unlock()
	m.cancel()

	if wasLoading {
		m.effects.LoadingChanged(false)
	}
}

func (m *Machine) submitRating(rating int, origin models.Origin) error {
	m.mu.Lock()
	if err := m.acceptLocked(PhaseGreetingAndFirstQuestion, PhaseAssessmentInProgress); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := checkRating(rating); err != nil {
		m.mu.Unlock()
		return err
	}

	m.appendUserLocked(m.bundle.RatingText(rating), origin)
	m.assessment.Answers = append(m.assessment.Answers, rating)

	if m.assessment.QuestionIndex < mood.QuestionCount-1 {
		m.assessment.QuestionIndex++
		m.setPhaseLocked(PhaseAssessmentInProgress)
		next := m.bundle.Questions[m.assessment.QuestionIndex]
		m.pacedLocked(m.cfg.PacingDelay, func() {
			m.appendAssistantLocked(next)
		})
		m.unlockAndFlush()
		return nil
	}

	m.assessment.Complete = true
	m.setPhaseLocked(PhaseAssessmentJustCompleted)
	analysis, err := mood.Score(m.assessment.Answers, m.bundle)
	if err != nil {
		// Unreachable: every stored answer passed checkRating.
		m.logger.Error("Failed to score assessment", zap.Error(err))
	}
	m.analysis = &analysis
	m.logger.Info("Assessment completed",
		zap.Float64("rating", analysis.Rating),
		zap.String("category", analysis.Category.Key()))

	summary := m.bundle.Completion(analysis)
	m.pacedLocked(m.cfg.PacingDelay, func() {
		m.setPhaseLocked(PhaseAwaitingBreathingChoice)
		m.appendAssistantLocked(summary)
	})
	m.unlockAndFlush()
	return nil
}

func (m *Machine) chooseBreathing(choice Choice, origin models.Origin) error {
	if choice != ChoiceYes && choice != ChoiceNo {
		return fmt.Errorf("%w: unknown choice %q", ErrInputNotAccepted, choice)
	}

	m.mu.Lock()
	if err := m.acceptLocked(PhaseAwaitingBreathingChoice); err != nil {
		m.mu.Unlock()
		return err
	}

	lang := m.lang
	if choice == ChoiceYes {
		m.appendUserLocked(m.bundle.YesReply, origin)
		m.setPhaseLocked(PhaseFreeChat)
		m.pacedLocked(m.cfg.BreathingDelay, func() {
			m.emit(func(e Effects) { e.OpenBreathing(lang) })
		})
	} else {
		m.appendUserLocked(m.bundle.NoReply, origin)
		m.setPhaseLocked(PhaseFreeChat)
		reassurance := m.bundle.Reassurance
		m.pacedLocked(m.cfg.PacingDelay, func() {
			m.appendAssistantLocked(reassurance)
		})
	}
	m.unlockAndFlush()
	return nil
}

func (m *Machine) awaitReply(ctx context.Context, epoch uint64, text string, lang models.Language) {
	if m.cfg.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ReplyTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.done, cancel)
	defer stop()

	reply, err := m.replier.Reply(ctx, text, lang)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty reply")
	}

	m.mu.Lock()
	if m.closed || m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Debug("Dropping stale reply", zap.Uint64("epoch", epoch))
		return
	}

	m.loading = false
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrReplyFailure, err)
		m.logger.Error("Failed to get reply", zap.Error(err), zap.String("language", string(lang)))
		m.emit(func(e Effects) { e.ReplyFailed(err) })
	} else {
		m.appendAssistantLocked(strings.TrimSpace(reply))
	}
	m.emit(func(e Effects) { e.LoadingChanged(false) })
	m.unlockAndFlush()
}

// acceptLocked checks that the machine is open, in one of phases and idle.
func (m *Machine) acceptLocked(phases ...Phase) error {
	if m.closed {
		return ErrClosed
	}
	ok := false
	for _, p := range phases {
		if m.phase == p {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrInputNotAccepted, m.phase)
	}
	if m.pacing || m.loading {
		return ErrBusy
	}
	return nil
}

func (m *Machine) acceptsLocked() Input {
	if m.closed || m.pacing || m.loading {
		return InputNone
	}
	switch m.phase {
	case PhaseGreetingAndFirstQuestion, PhaseAssessmentInProgress:
		return InputRating
	case PhaseAwaitingBreathingChoice:
		return InputChoice
	case PhaseFreeChat:
		return InputText
	default:
		return InputNone
	}
}

func (m *Machine) resetLocked() {
	m.timers.CancelAll()
	m.epoch++
	if m.loading {
		m.emit(func(e Effects) { e.LoadingChanged(false) })
	}
	m.loading = false
	m.pacing = false
	m.history = nil
	m.assessment = Assessment{}
	m.analysis = nil
}

func (m *Machine) beginLocked() {
	m.setPhaseLocked(PhaseGreetingAndFirstQuestion)
	m.pacing = true
	m.appendAssistantLocked(m.bundle.Greeting)
	first := m.bundle.Questions[0]
	m.pacedLocked(m.cfg.PacingDelay, func() {
		m.appendAssistantLocked(first)
	})
}

func (m *Machine) setPhaseLocked(p Phase) {
	if m.phase != p {
		m.logger.Debug("Phase changed",
			zap.Stringer("from", m.phase),
			zap.Stringer("to", p))
	}
	m.phase = p
}

// pacedLocked marks the machine busy until fn runs after d.
func (m *Machine) pacedLocked(d time.Duration, fn func()) {
	m.pacing = true
	m.afterLocked(d, func() {
		m.pacing = false
		fn()
	})
}

// afterLocked schedules fn to run under the lock unless the conversation
// was reset or closed in the meantime.
func (m *Machine) afterLocked(d time.Duration, fn func()) {
	epoch := m.epoch
	m.timers.After(m.sched, d, func() {
		m.mu.Lock()
		if m.closed || m.epoch != epoch {
			m.mu.Unlock()
			return
		}
		fn()
		m.unlockAndFlush()
	})
}

func (m *Machine) appendUserLocked(text string, origin models.Origin) {
	msg := models.Message{
		ID:        m.newID(),
		Role:      models.RoleUser,
		Content:   text,
		Visible:   true,
		Origin:    origin,
		CreatedAt: m.now(),
	}
	m.history = append(m.history, msg)
	m.emit(func(e Effects) { e.MessageAppended(msg, InputNone) })
}

// appendAssistantLocked adds a hidden assistant message and reveals it after
// the reveal delay.
func (m *Machine) appendAssistantLocked(text string) {
	msg := models.Message{
		ID:        m.newID(),
		Role:      models.RoleAssistant,
		Content:   text,
		Origin:    models.OriginSystem,
		CreatedAt: m.now(),
	}
	m.history = append(m.history, msg)
	accepts := m.acceptsLocked()
	m.emit(func(e Effects) { e.MessageAppended(msg, accepts) })
	if m.tts {
		lang := m.lang
		m.emit(func(e Effects) { e.Speak(text, lang) })
	}

	id := msg.ID
	m.afterLocked(m.cfg.RevealDelay, func() {
		for i := range m.history {
			if m.history[i].ID == id {
				m.history[i].Visible = true
				return
			}
		}
	})
}

func (m *Machine) emit(fn func(Effects)) {
	m.outbox = append(m.outbox, fn)
}

// unlockAndFlush releases the lock and delivers queued effects. Only one
// goroutine delivers at a time; effects queued while it is delivering,
// including re-entrant ones, are picked up by the same loop.
func (m *Machine) unlockAndFlush() {
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.outbox) > 0 {
		batch := m.outbox
		m.outbox = nil
		m.mu.Unlock()
		for _, fn := range batch {
			fn(m.effects)
		}
		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
}

package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/xaenox/moodlift-bot/internal/breathing"
	"github.com/xaenox/moodlift-bot/internal/conversation"
	"github.com/xaenox/moodlift-bot/internal/voice"
)

var ErrClosed = errors.New("storage closed")

// Storage keeps one live session per chat.
type Storage interface {
	// GetOrCreate returns the chat's session, building it with create on
	// first use.
	GetOrCreate(chatID int64, create Factory) (*Session, error)
	Get(chatID int64) (*Session, bool)
	// Delete closes and forgets the chat's session.
	Delete(chatID int64) error
	// EvictIdle closes sessions unused for longer than maxIdle.
	EvictIdle(maxIdle time.Duration) int
	Stats() Stats
	Close() error
}

type Factory func(chatID int64) (*Session, error)

// Session bundles the per-chat state machines.
type Session struct {
	ChatID    int64
	Machine   *conversation.Machine
	Breathing *breathing.Timer
	// Recorder is nil when voice input is disabled.
	Recorder  *voice.Recorder
	CreatedAt time.Time

	mu         sync.Mutex
	lastUsedAt time.Time
	// breathingMessageID is the Telegram message showing the timer card.
	breathingMessageID int
}

func NewSession(chatID int64, machine *conversation.Machine, timer *breathing.Timer, now time.Time) *Session {
	return &Session{
		ChatID:     chatID,
		Machine:    machine,
		Breathing:  timer,
		CreatedAt:  now,
		lastUsedAt: now,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsedAt = now
	s.mu.Unlock()
}

func (s *Session) LastUsedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsedAt
}

// BreathingMessage returns the id of the message rendering the timer, or 0.
func (s *Session) BreathingMessage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breathingMessageID
}

func (s *Session) SetBreathingMessage(id int) {
	s.mu.Lock()
	s.breathingMessageID = id
	s.mu.Unlock()
}

// Close stops the machines. Timers, recordings and in-flight replies are
// cancelled.
func (s *Session) Close() {
	if s.Recorder != nil {
		s.Recorder.Abort()
	}
	if s.Machine != nil {
		s.Machine.Close()
	}
	if s.Breathing != nil {
		s.Breathing.Close()
	}
}

// Stats summarizes live sessions.
type Stats struct {
	Sessions             int
	CompletedAssessments int
	// AverageRating is the mean 0-10 rating over completed assessments.
	AverageRating float64
}

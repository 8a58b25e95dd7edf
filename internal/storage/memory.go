package storage

import (
	"sync"
	"time"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	closed   bool
	now      func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

func (s *MemoryStorage) GetOrCreate(chatID int64, create Factory) (*Session, error) {
	if session, ok := s.Get(chatID); ok {
		return session, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	// Another goroutine may have won the race
	if session, exists := s.sessions[chatID]; exists {
		session.touch(s.now())
		return session, nil
	}

	session, err := create(chatID)
	if err != nil {
		return nil, err
	}
	session.touch(s.now())
	s.sessions[chatID] = session
	return session, nil
}

func (s *MemoryStorage) Get(chatID int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[chatID]
	if !exists || s.closed {
		return nil, false
	}
	session.touch(s.now())
	return session, true
}

func (s *MemoryStorage) Delete(chatID int64) error {
	s.mu.Lock()
	session, exists := s.sessions[chatID]
	delete(s.sessions, chatID)
	s.mu.Unlock()

	if exists {
		session.Close()
	}
	return nil
}

func (s *MemoryStorage) EvictIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	var idle []*Session
	for id, session := range s.sessions {
		if session.LastUsedAt().Before(cutoff) {
			idle = append(idle, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range idle {
		session.Close()
	}
	return len(idle)
}

func (s *MemoryStorage) Stats() Stats {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	stats := Stats{Sessions: len(sessions)}
	var total float64
	for _, session := range sessions {
		if session.Machine == nil {
			continue
		}
		if analysis := session.Machine.Snapshot().Analysis; analysis != nil {
			stats.CompletedAssessments++
			total += analysis.Rating
		}
	}
	if stats.CompletedAssessments > 0 {
		stats.AverageRating = total / float64(stats.CompletedAssessments)
	}
	return stats
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[int64]*Session)
	s.closed = true
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
	return nil
}

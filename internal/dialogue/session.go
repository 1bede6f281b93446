package dialogue

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"vigia-telegram-bot/internal/catalog"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingInstrument
	StateAwaitingPrice
)

// Session tracks one chat's progress through the guided creation flow. It
// lives in memory only; a restart drops every session by design.
type Session struct {
	State      State
	Instrument *catalog.Entry
	UpdatedAt  time.Time
}

// Sessions is the keyed session store, one live session per chat. Expired
// sessions are dropped lazily on access and by the janitor sweep.
type Sessions struct {
	mu  sync.Mutex
	m   map[int64]*Session
	ttl time.Duration
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		m:   make(map[int64]*Session),
		ttl: ttl,
	}
}

func (s *Sessions) get(chatID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.m[chatID]
	if !ok {
		return nil
	}
	if time.Since(session.UpdatedAt) > s.ttl {
		delete(s.m, chatID)
		return nil
	}
	return session
}

// put replaces any open session for the chat; dialogues never stack.
func (s *Sessions) put(chatID int64, session *Session) {
	session.UpdatedAt = time.Now()
	s.mu.Lock()
	s.m[chatID] = session
	s.mu.Unlock()
}

func (s *Sessions) remove(chatID int64) {
	s.mu.Lock()
	delete(s.m, chatID)
	s.mu.Unlock()
}

// Sweep drops every expired session and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for chatID, session := range s.m {
		if time.Since(session.UpdatedAt) > s.ttl {
			delete(s.m, chatID)
			removed++
		}
	}
	return removed
}

// Janitor sweeps abandoned sessions until the context is cancelled.
func (s *Sessions) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debugf("swept %d abandoned dialogue sessions", n)
			}
		}
	}
}

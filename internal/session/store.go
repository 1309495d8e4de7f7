package session

import (
	"sync"
	"time"

	"photo-studio/internal/studio"
)

// Entry is one live studio session with its bookkeeping.
type Entry struct {
	Key          string
	Username     string
	Session      *studio.Session
	LastActivity time.Time

	// PanelMessageID is the bot message that currently shows this session.
	PanelMessageID int
	// Menu is the panel page currently shown.
	Menu string
	// Awaiting names the free-text field the next chat message fills.
	Awaiting string
}

type Options struct {
	IdleTimeout time.Duration
	// New builds the session for a key seen for the first time.
	New func(key string) *studio.Session
	Now func() time.Time
}

// Store keys studio sessions by chat, user or web id and evicts the ones
// that have been idle for longer than IdleTimeout.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*Entry
	idleTimeout time.Duration
	newSession  func(key string) *studio.Session
	now         func() time.Time
}

func NewStore(opts Options) *Store {
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = 2 * time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newSession := opts.New
	if newSession == nil {
		newSession = func(string) *studio.Session { return studio.NewSession(studio.Options{}) }
	}

	return &Store{
		sessions:    make(map[string]*Entry),
		idleTimeout: idle,
		newSession:  newSession,
		now:         now,
	}
}

// Get returns the session for key, creating it on first use.
func (s *Store) Get(key, username string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(key, username)
}

// Lookup returns an existing session without creating one.
func (s *Store) Lookup(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[key]
	if ok {
		e.LastActivity = s.now()
	}
	return e, ok
}

// Update runs fn on the entry under the store lock.
func (s *Store) Update(key, username string, fn func(e *Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.getOrCreateLocked(key, username))
}

// Reset closes and forgets the session for key.
func (s *Store) Reset(key string) {
	s.mu.Lock()
	e, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if ok {
		e.Session.Close()
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Evict closes sessions idle past the timeout and returns their keys.
func (s *Store) Evict() []string {
	cutoff := s.now().Add(-s.idleTimeout)

	s.mu.Lock()
	var evicted []*Entry
	for key, e := range s.sessions {
		if e.LastActivity.Before(cutoff) {
			evicted = append(evicted, e)
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	keys := make([]string, 0, len(evicted))
	for _, e := range evicted {
		e.Session.Close()
		keys = append(keys, e.Key)
	}
	return keys
}

// RunEvictor calls Evict every interval until stop is closed.
func (s *Store) RunEvictor(interval time.Duration, stop <-chan struct{}, onEvict func(keys []string)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if keys := s.Evict(); len(keys) > 0 && onEvict != nil {
				onEvict(keys)
			}
		case <-stop:
			return
		}
	}
}

// Close closes every session.
func (s *Store) Close() {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*Entry)
	s.mu.Unlock()

	for _, e := range entries {
		e.Session.Close()
	}
}

func (s *Store) getOrCreateLocked(key, username string) *Entry {
	if e, ok := s.sessions[key]; ok {
		if e.Username == "" && username != "" {
			e.Username = username
		}
		e.LastActivity = s.now()
		return e
	}

	e := &Entry{
		Key:          key,
		Username:     username,
		Session:      s.newSession(key),
		LastActivity: s.now(),
	}
	s.sessions[key] = e
	return e
}

package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-studio/internal/studio"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStore(c *clock) *Store {
	return NewStore(Options{
		IdleTimeout: time.Minute,
		Now:         c.Now,
		New: func(string) *studio.Session {
			return studio.NewSession(studio.Options{TickInterval: -1})
		},
	})
}

func TestGetCreatesOnce(t *testing.T) {
	s := newStore(&clock{now: time.Unix(0, 0)})
	a := s.Get("chat:1", "")
	b := s.Get("chat:1", "somchai")
	assert.Same(t, a, b)
	assert.Same(t, a.Session, b.Session)
	assert.Equal(t, "somchai", b.Username)
	assert.Equal(t, 1, s.Len())

	_, ok := s.Lookup("chat:2")
	assert.False(t, ok)
}

func TestEvictIdleSessions(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	s := newStore(c)

	old := s.Get("old", "")
	c.Advance(45 * time.Second)
	s.Get("fresh", "")
	c.Advance(30 * time.Second)

	keys := s.Evict()
	assert.Equal(t, []string{"old"}, keys)
	assert.Equal(t, 1, s.Len())

	// the evicted session is closed
	assert.ErrorIs(t, old.Session.SetMode(studio.ModeEditor), studio.ErrClosed)
}

func TestUpdateAndReset(t *testing.T) {
	s := newStore(&clock{now: time.Unix(0, 0)})
	s.Update("k", "", func(e *Entry) { e.Awaiting = "details" })
	e, ok := s.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, "details", e.Awaiting)

	s.Reset("k")
	_, ok = s.Lookup("k")
	assert.False(t, ok)
	assert.ErrorIs(t, e.Session.SetDetails("x"), studio.ErrClosed)
}

func TestRunEvictorStops(t *testing.T) {
	c := &clock{now: time.Unix(0, 0)}
	s := newStore(c)
	s.Get("k", "")
	c.Advance(time.Hour)

	evicted := make(chan []string, 1)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		s.RunEvictor(5*time.Millisecond, stop, func(keys []string) { evicted <- keys })
		close(done)
	}()

	select {
	case keys := <-evicted:
		assert.Equal(t, []string{"k"}, keys)
	case <-time.After(time.Second):
		t.Fatal("evictor did not run")
	}
	close(stop)
	<-done
}

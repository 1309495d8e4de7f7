package studio

import "time"

// Tick advances the rate-limit countdown by one second and returns the
// seconds left. The countdown goroutine calls it; tests call it directly.
func (s *Session) Tick() int {
	return s.tick(nil)
}

// tick skips the decrement when owner is set and no longer the running
// countdown, so a ticker that lost the race with a restart stays silent.
func (s *Session) tick(owner chan struct{}) int {
	s.mu.Lock()
	if s.closed || (owner != nil && s.stopTick != owner) {
		s.mu.Unlock()
		return 0
	}
	if s.state.RetryAfter > 0 {
		s.state.RetryAfter--
	}
	remaining := s.state.RetryAfter
	if remaining == 0 {
		s.stopCountdownLocked()
	}
	snap := s.state.clone()
	s.mu.Unlock()

	s.publish(snap)
	return remaining
}

func (s *Session) startCountdownLocked() {
	if s.interval < 0 || s.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	s.stopTick = stop

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if s.tick(stop) == 0 {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

func (s *Session) stopCountdownLocked() {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

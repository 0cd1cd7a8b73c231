package scsi

import "sync"

// session serializes the calls made through one exclusive acquisition
type session struct {
	mu       sync.Mutex
	released bool
}

// acquire locks the session for one call. The caller unlocks mu.
func (s *session) acquire() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return ErrSessionReleased
	}
	return nil
}

func (s *session) release(unlockHandle func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrSessionReleased
	}
	s.released = true
	unlockHandle()
	return nil
}

package services

import "time"

// SetClock replaces the time source used to issue and verify tokens.
func (s *AuthServiceImpl) SetClock(now func() time.Time) {
	s.now = now
}

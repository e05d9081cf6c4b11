package session

// onHeartbeatTimer fires every heartbeatInterval once the handshake has
// completed (spec §4.5). Each invocation counts as a ping that has not yet
// been answered; a received pong resets the counter in dispatchRecord.
func (s *Session) onHeartbeatTimer() {
	if s.terminated.Load() {
		return
	}

	missed := s.pingsMissed.Add(1)
	if missed > heartbeatMaxMissed {
		s.terminate()
		return
	}

	s.mu.Lock()
	err := s.engine.SendHeartbeatPing()
	s.mu.Unlock()
	if err != nil {
		s.logger.Printf("session: heartbeat ping to %v failed: %v", s.primary, err)
	}

	s.armTimer(heartbeatInterval, s.onHeartbeatTimer)
}

package session

import (
	"errors"

	"overlaycore/internal/noisecore"
)

// handshakeStepLocked advances the handshake by one step and branches on
// the result exactly per spec §4.3's dispatch table. Callers must hold
// s.mu; used (a) once from the client constructor, (b) on retry timer
// expiry, and (c) from Receive while the handshake is incomplete.
func (s *Session) handshakeStepLocked() {
	if s.terminated.Load() {
		return
	}

	if s.role == noisecore.RoleServer && s.cookie != nil {
		// Anti-spoof prestate: a server Session only ever reaches its first
		// handshake step once an inbound datagram has arrived (see
		// Receive), so this is that "initial hello-verify-request flow"
		// point. The XX handshake has no cookie exchange, so the prestate is
		// only logged and cleared here.
		s.logger.Printf("session: consuming cookie prestate for %v", s.primary)
		s.cookie = nil
	}

	status, direction, err := s.engine.Handshake()

	switch status {
	case noisecore.HandshakeWouldBlock:
		if direction == noisecore.WritePending {
			s.armTimer(handshakeRetransmitDelay, s.onRetryTimer)
			s.armDeadline(handshakeHardDeadline, s.onHandshakeTimeout)
		}
		// PullPending: no timer, the next inbound datagram re-enters here.

	case noisecore.HandshakeComplete:
		s.cancelTimer()
		s.cancelDeadline()
		s.handshakeCompleted.Store(true)
		s.engine.SetDataMTU(recordDataMTU)
		if s.role == noisecore.RoleClient {
			_ = s.engine.SendHeartbeatPing()
		}
		s.armTimer(heartbeatInterval, s.onHeartbeatTimer)

	case noisecore.HandshakeError:
		var verr *noisecore.VerifyError
		if errors.As(err, &verr) && verr.Alert != noisecore.AlertNone {
			_ = s.engine.SendHandshakeAlert(verr.Alert)
			s.alerted.Store(true)
		}
		s.mu.Unlock()
		s.terminate()
		s.mu.Lock()
	}
}

// onRetryTimer fires when the handshake retransmit delay elapses without
// the awaited reply. It is itself the "normal expiry" described in §4.3:
// a fresh handshake step is performed, which may re-arm the retry timer.
func (s *Session) onRetryTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakeStepLocked()
}

package session

import (
	"net/netip"
	"time"

	"overlaycore/internal/noisecore"
)

// armTimer cancels whatever the shared timer was doing and reschedules it.
// The timer is reused sequentially across handshake retry, heartbeat
// cadence, and the destruction grace period — never for two purposes at
// once — per the data model's single-timer field.
func (s *Session) armTimer(d time.Duration, fn func()) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, fn)
}

func (s *Session) cancelTimer() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// armDeadline and cancelDeadline manage the 10s hard upper bound on
// handshake progress (spec §4.3), which must run concurrently with the
// 500ms retry timer above and so cannot share its field.
func (s *Session) armDeadline(d time.Duration, fn func()) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.deadlineTimer != nil {
		return // already armed for this handshake attempt
	}
	s.deadlineTimer = time.AfterFunc(d, fn)
}

func (s *Session) cancelDeadline() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.deadlineTimer != nil {
		s.deadlineTimer.Stop()
		s.deadlineTimer = nil
	}
}

// onHandshakeTimeout fires when the hard deadline elapses without a
// completed handshake. Per spec §4.3's "timed-out" row and §4.1's endpoint
// fan-out rule (and Design Note 9's successor-spawn requirement), both
// resolve to the same fan-out-capable path: try the next candidate, or
// simply terminate if none remain.
func (s *Session) onHandshakeTimeout() {
	s.mu.Lock()
	if s.terminated.Load() || s.handshakeCompleted.Load() {
		s.mu.Unlock()
		return
	}
	candidates := append([]netip.AddrPort(nil), s.candidates...)
	s.mu.Unlock()

	if len(candidates) > 0 {
		s.spawnSuccessor(candidates)
	}
	s.terminate()
}

func (s *Session) spawnSuccessor(candidates []netip.AddrPort) {
	if s.onSpawn != nil {
		s.onSpawn(candidates)
		return
	}
	deps := Deps{Gateway: s.gateway, Policy: s.policy, Keyring: s.keyring, Keyserver: s.keyserver, Logger: s.logger}
	if _, err := NewClient(deps, candidates); err != nil {
		s.logger.Printf("session: endpoint fan-out to %v failed: %v", candidates, err)
	}
}

// terminate is the single path to tearing a Session down (spec §4.1,
// §7). It is idempotent: only the first caller's sequencing has any
// effect, but destroy() itself additionally guards with sync.Once since
// terminate may itself be invoked concurrently from several callbacks.
func (s *Session) terminate() {
	if s.terminated.Swap(true) {
		return
	}
	s.cancelDeadline()

	if !s.alerted.Load() {
		s.mu.Lock()
		if s.engine != nil && s.handshakeCompleted.Load() {
			_ = s.engine.SendAlert(noisecore.AlertCloseNotify)
		} else if s.engine != nil {
			_ = s.engine.SendHandshakeAlert(noisecore.AlertCloseNotify)
		}
		s.mu.Unlock()
	}

	s.armTimer(destructionGrace, s.destroy)
}

// destroy runs exactly once, however many callbacks race to trigger it: it
// deregisters from both Gateway routing tables and releases the crypto
// engine (spec §4.1 destructor steps b-d; step a, the shutdown alert, is
// sent once by terminate above).
func (s *Session) destroy() {
	s.destroyOnce.Do(func() {
		if s.endpointHandle != nil {
			s.gateway.DisconnectEndpoint(s.endpointHandle)
		}
		s.prefixMu.Lock()
		if s.hasPrefixHandle {
			s.gateway.DisconnectPrefix(s.prefixHandle)
			s.hasPrefixHandle = false
		}
		s.prefixMu.Unlock()

		s.mu.Lock()
		if s.engine != nil {
			s.engine.Close()
		}
		s.mu.Unlock()
	})
}

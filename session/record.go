package session

import (
	"fmt"

	"overlaycore/internal/noisecore"
)

// Send implements application.Session: encrypt plaintext and transmit it.
// Fragmentation at the 1280-byte data MTU is the crypto engine's
// responsibility (spec §4.4).
func (s *Session) Send(plaintext []byte) error {
	if s.terminated.Load() {
		return fmt.Errorf("session: send after terminate")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.handshakeCompleted.Load() {
		return fmt.Errorf("session: send before handshake complete")
	}
	_, err := s.engine.Send(plaintext)
	return err
}

// Receive implements application.Session: feed one inbound ciphertext
// datagram, driving the handshake or the record-decrypt dispatch depending
// on current state (spec §4.4).
func (s *Session) Receive(ciphertext []byte, dst []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated.Load() {
		return nil // drop silently, per spec
	}

	s.installPullBuffer(ciphertext)

	if !s.handshakeCompleted.Load() {
		s.handshakeStepLocked()
		return nil
	}

	status, n, err := s.engine.Recv(dst)
	s.dispatchRecord(status, n, err, dst)
	return nil
}

// dispatchRecord applies spec §4.4's receive-dispatch table. Called with
// s.mu held.
func (s *Session) dispatchRecord(status noisecore.RecordStatus, n int, err error, dst []byte) {
	switch status {
	case noisecore.RecordData:
		if n > 0 {
			s.gateway.Decrypted(dst[:n])
		}

	case noisecore.RecordWouldBlock:
		// no-op

	case noisecore.RecordHeartbeatPing:
		if perr := s.engine.SendHeartbeatPong(); perr != nil {
			s.logger.Printf("session: heartbeat pong to %v failed: %v", s.primary, perr)
		}

	case noisecore.RecordHeartbeatPong:
		s.pingsMissed.Store(0)

	case noisecore.RecordAlert:
		// Open question (spec §9): the source does not distinguish fatal
		// from warning alerts when deciding to terminate on a pending
		// alert. Preserved literally: any alert record terminates.
		s.mu.Unlock()
		s.terminate()
		s.mu.Lock()

	case noisecore.RecordClosed:
		_ = err
		s.mu.Unlock()
		s.terminate()
		s.mu.Lock()

	case noisecore.RecordError:
		// spec §7: a record that fails to decrypt/authenticate — corrupted
		// in transit, or forged by an off-path attacker — is an immediate
		// terminate, the same as an alert or EOF, not a silent drop.
		s.logger.Printf("session: record decrypt failed from %v: %v", s.primary, err)
		s.mu.Unlock()
		s.terminate()
		s.mu.Lock()
	}
}

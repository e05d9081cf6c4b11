package session

// pull implements noisecore.PullFunc: it is the only place the pull buffer
// is drained. Callers always hold s.mu, satisfying invariant 1.
func (s *Session) pull(buf []byte) (int, bool) {
	if !s.pullAvailable {
		return 0, false
	}
	n := copy(buf, s.pullBuf)
	s.pullAvailable = false
	return n, true
}

// push implements noisecore.PushFunc: hand ciphertext to the Gateway's
// non-blocking send against the current primary endpoint. The Gateway
// contract forbids calling back into this Session from inside Send, so this
// is safe to invoke while s.mu is held (see application.Gateway's doc on
// re-entrancy).
func (s *Session) push(buf []byte) (int, error) {
	return s.gateway.Send(buf, s.primary)
}

// installPullBuffer stages src as the single pending datagram. Only called
// from Receive while s.mu is held, satisfying invariant 2:
// at most one datagram pending at a time, consumed atomically by the next
// pull.
func (s *Session) installPullBuffer(src []byte) {
	if cap(s.pullBuf) < len(src) {
		s.pullBuf = make([]byte, len(src))
	}
	s.pullBuf = s.pullBuf[:len(src)]
	copy(s.pullBuf, src)
	s.pullAvailable = true
}

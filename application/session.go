package application

// Session is the contract a secure datagram session exposes back to the
// Gateway: feed it ciphertext, hand it plaintext to encrypt, or install a
// DTLS-style cookie prestate on the server side.
type Session interface {
	// Send encrypts plaintext and transmits it to the peer.
	Send(plaintext []byte) error

	// Receive feeds an inbound ciphertext datagram into the session. dst is
	// scratch space the session may decrypt into. Receive never blocks.
	Receive(ciphertext []byte, dst []byte) error

	// SetCookie installs a DTLS cookie prestate for anti-spoof handshake
	// resume, to be consumed by the next server-side handshake step; a no-op
	// once the handshake has completed or the session has terminated.
	SetCookie(cookie []byte)
}

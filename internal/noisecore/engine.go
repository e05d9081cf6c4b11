// Package noisecore is the crypto session engine driven by the Session
// state machine in package session. It models a GnuTLS-style DTLS session
// with OpenPGP certificate authentication: Noise XX (DH25519/ChaChaPoly/
// SHA256, the same cipher suite and library the teacher's own
// infrastructure/cryptography/noise package uses) carries the transport
// handshake, and the peer's raw OpenPGP certificate bytes ride inside the
// Noise handshake payload exactly as an OpenPGP certificate type rides
// inside a TLS handshake.
//
// The engine exposes pull and push, the two transport hooks that carry
// data across the synchronous/async boundary: pull is called at most once
// per available datagram and reports ok=false when none is pending; push
// hands ciphertext to the caller-supplied sender. A third hook from the
// DTLS-style transport shim, pull-timeout (report available byte count
// without consuming, so the library knows whether to block), has no
// caller here: Handshake and Recv are driven synchronously by the Session
// each time Receive() runs, so readiness is always already known from
// pull's own ok return before either is called — there is no separate
// blocking point that needs a poll. See DESIGN.md.
package noisecore

import (
	"fmt"

	"github.com/flynn/noise"
)

// Role identifies which side of the handshake this engine plays.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// PullFunc copies up to len(buf) bytes from the single pending inbound
// datagram into buf, consuming it, and reports ok=false if none is
// pending.
type PullFunc func(buf []byte) (n int, ok bool)

// PushFunc hands buf to the underlying transport and reports the number of
// bytes accepted.
type PushFunc func(buf []byte) (n int, err error)

// VerifyFunc is invoked once with the peer's raw certificate bytes,
// extracted from the handshake payload. A non-nil *VerifyError carries the
// alert to send before failing the handshake.
type VerifyFunc func(peerCertRaw []byte) error

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

type hsState int

const (
	hsServerAwaitingMsg1 hsState = iota
	hsServerAwaitingMsg3
	hsClientBeforeMsg1
	hsClientAwaitingMsg2
	hsDone
)

// Engine is the per-session crypto engine. It is not safe for concurrent
// use by multiple goroutines; the owning Session serialises all access
// under its own lock, per spec invariant 1.
type Engine struct {
	role Role

	localCert []byte
	verify    VerifyFunc

	pull PullFunc
	push PushFunc

	hs    *noise.HandshakeState
	state hsState

	lastFlight []byte // last handshake message we pushed, for retransmission

	sendCS *noise.CipherState
	recvCS *noise.CipherState

	dataMTU int
}

// NewEngine constructs a crypto engine for role, presenting localCert
// during the handshake. verify is invoked with the peer's raw certificate
// once it is received.
func NewEngine(role Role, localCert []byte, verify VerifyFunc) (*Engine, error) {
	staticKeypair, err := cipherSuite.GenerateKeypair(nil)
	if err != nil {
		return nil, fmt.Errorf("noisecore: generate static keypair: %w", err)
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     role == RoleClient,
		StaticKeypair: staticKeypair,
	})
	if err != nil {
		return nil, fmt.Errorf("noisecore: handshake state: %w", err)
	}

	e := &Engine{
		role:      role,
		localCert: localCert,
		verify:    verify,
		hs:        hs,
		dataMTU:   1280,
	}
	if role == RoleServer {
		e.state = hsServerAwaitingMsg1
	} else {
		e.state = hsClientBeforeMsg1
	}
	return e, nil
}

// SetTransport installs the pull/push hooks. Must be called before the
// first Handshake step.
func (e *Engine) SetTransport(pull PullFunc, push PushFunc) {
	e.pull = pull
	e.push = push
}

// SetDataMTU sets the plaintext fragment size used by the record layer
// once the handshake completes.
func (e *Engine) SetDataMTU(mtu int) {
	e.dataMTU = mtu
}

// SetVerify replaces the verification callback installed at construction.
// Exposed primarily so tests can substitute a trivial accept/reject
// function without needing a real certificate fixture.
func (e *Engine) SetVerify(verify VerifyFunc) {
	e.verify = verify
}

// HandshakeCompleted reports whether the handshake has finished.
func (e *Engine) HandshakeCompleted() bool {
	return e.state == hsDone
}

const maxHandshakeMessage = 8192

// Handshake advances the handshake state machine by exactly one step and
// never blocks. See package session's handshake driver for how the result
// and direction are dispatched.
func (e *Engine) Handshake() (HandshakeStatus, Direction, error) {
	if e.state == hsDone {
		return HandshakeComplete, PullPending, nil
	}

	switch e.role {
	case RoleClient:
		return e.handshakeClient()
	default:
		return e.handshakeServer()
	}
}

func (e *Engine) handshakeClient() (HandshakeStatus, Direction, error) {
	if e.state == hsClientBeforeMsg1 {
		msg1, _, _, err := e.hs.WriteMessage(nil, nil)
		if err != nil {
			return HandshakeError, PullPending, fmt.Errorf("noisecore: write msg1: %w", err)
		}
		if _, err := e.push(msg1); err != nil {
			return HandshakeError, PullPending, fmt.Errorf("noisecore: push msg1: %w", err)
		}
		e.lastFlight = msg1
		e.state = hsClientAwaitingMsg2
		return HandshakeWouldBlock, WritePending, nil
	}

	// hsClientAwaitingMsg2
	buf := make([]byte, maxHandshakeMessage)
	n, ok := e.pull(buf)
	if !ok {
		// Retransmit the flight we're still awaiting a reply to.
		if _, err := e.push(e.lastFlight); err != nil {
			return HandshakeError, WritePending, fmt.Errorf("noisecore: retransmit msg1: %w", err)
		}
		return HandshakeWouldBlock, WritePending, nil
	}

	payload, cs1, cs2, err := e.hs.ReadMessage(nil, buf[:n])
	if err != nil {
		return HandshakeError, WritePending, fmt.Errorf("noisecore: read msg2: %w", err)
	}
	if cs1 != nil || cs2 != nil {
		return HandshakeError, WritePending, fmt.Errorf("noisecore: unexpected cipher states after msg2")
	}

	if verr := e.runVerify(payload); verr != nil {
		return HandshakeError, WritePending, verr
	}

	msg3, sendCS, recvCS, err := e.hs.WriteMessage(nil, e.localCert)
	if err != nil {
		return HandshakeError, WritePending, fmt.Errorf("noisecore: write msg3: %w", err)
	}
	if sendCS == nil || recvCS == nil {
		return HandshakeError, WritePending, fmt.Errorf("noisecore: handshake not complete after msg3")
	}
	if _, err := e.push(msg3); err != nil {
		return HandshakeError, WritePending, fmt.Errorf("noisecore: push msg3: %w", err)
	}

	e.sendCS, e.recvCS = sendCS, recvCS
	e.state = hsDone
	return HandshakeComplete, PullPending, nil
}

func (e *Engine) handshakeServer() (HandshakeStatus, Direction, error) {
	buf := make([]byte, maxHandshakeMessage)
	n, ok := e.pull(buf)
	if !ok {
		// The server never holds an unacknowledged flight of its own: a
		// dropped reply is repaired by the client's retransmission of its
		// last message, which re-enters here. No local timer is armed.
		return HandshakeWouldBlock, PullPending, nil
	}

	switch e.state {
	case hsServerAwaitingMsg1:
		if _, _, _, err := e.hs.ReadMessage(nil, buf[:n]); err != nil {
			return HandshakeError, PullPending, fmt.Errorf("noisecore: read msg1: %w", err)
		}
		msg2, _, _, err := e.hs.WriteMessage(nil, e.localCert)
		if err != nil {
			return HandshakeError, PullPending, fmt.Errorf("noisecore: write msg2: %w", err)
		}
		if _, err := e.push(msg2); err != nil {
			return HandshakeError, PullPending, fmt.Errorf("noisecore: push msg2: %w", err)
		}
		e.lastFlight = msg2
		e.state = hsServerAwaitingMsg3
		return HandshakeWouldBlock, PullPending, nil

	case hsServerAwaitingMsg3:
		payload, cs1, cs2, err := e.hs.ReadMessage(nil, buf[:n])
		if err != nil {
			// Most likely the client retransmitted msg1 because it never
			// saw our msg2. Resend it and keep waiting for msg3.
			if _, perr := e.push(e.lastFlight); perr != nil {
				return HandshakeError, PullPending, fmt.Errorf("noisecore: resend msg2: %w", perr)
			}
			return HandshakeWouldBlock, PullPending, nil
		}
		if cs1 == nil || cs2 == nil {
			return HandshakeError, PullPending, fmt.Errorf("noisecore: handshake not complete after msg3")
		}

		if verr := e.runVerify(payload); verr != nil {
			return HandshakeError, PullPending, verr
		}

		e.recvCS, e.sendCS = cs1, cs2
		e.state = hsDone
		return HandshakeComplete, PullPending, nil

	default:
		return HandshakeError, PullPending, fmt.Errorf("noisecore: unexpected server state")
	}
}

func (e *Engine) runVerify(peerCertRaw []byte) error {
	if e.verify == nil {
		return nil
	}
	if err := e.verify(peerCertRaw); err != nil {
		return err
	}
	return nil
}

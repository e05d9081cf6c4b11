package noisecore

import (
	"crypto/rand"
	"fmt"
)

// Record type tags. The tag rides as associated data alongside the AEAD
// ciphertext so the type cannot be swapped without invalidating the tag,
// while remaining visible in the clear like a DTLS record header.
const (
	recTypeData byte = iota
	recTypeHeartbeatPing
	recTypeHeartbeatPong
	recTypeAlert
)

const recordOverhead = 1 + 16 // type byte + Poly1305 tag

// HeartbeatPingSize is the payload size of a heartbeat ping, matching the
// DTLS heartbeat extension's typical probe size.
const HeartbeatPingSize = 256

// Send encrypts plaintext and transmits it, fragmenting at the configured
// data MTU. Fragmentation is this layer's responsibility: each fragment is
// its own independently-encrypted, independently-delivered record, so the
// peer's Recv surfaces each fragment via its own call rather than
// reassembling — consistent with "no reliability/ordering guarantees
// beyond the crypto layer" (see DESIGN.md).
func (e *Engine) Send(plaintext []byte) (int, error) {
	if e.sendCS == nil {
		return 0, fmt.Errorf("noisecore: send before handshake complete")
	}

	chunk := e.dataMTU - recordOverhead
	if chunk <= 0 {
		return 0, fmt.Errorf("noisecore: data MTU too small")
	}

	sent := 0
	for sent < len(plaintext) || (len(plaintext) == 0 && sent == 0) {
		end := sent + chunk
		if end > len(plaintext) {
			end = len(plaintext)
		}
		if err := e.pushRecord(recTypeData, plaintext[sent:end]); err != nil {
			return sent, err
		}
		sent = end
		if len(plaintext) == 0 {
			break
		}
	}
	return sent, nil
}

// SendHeartbeatPing pushes a heartbeat ping record.
func (e *Engine) SendHeartbeatPing() error {
	payload := make([]byte, HeartbeatPingSize)
	if _, err := rand.Read(payload); err != nil {
		return fmt.Errorf("noisecore: heartbeat payload: %w", err)
	}
	return e.pushRecord(recTypeHeartbeatPing, payload)
}

// SendHeartbeatPong pushes a heartbeat pong record.
func (e *Engine) SendHeartbeatPong() error {
	return e.pushRecord(recTypeHeartbeatPong, nil)
}

// SendAlert pushes an alert record naming the alert type.
func (e *Engine) SendAlert(alert AlertType) error {
	return e.pushRecord(recTypeAlert, []byte{byte(alert)})
}

// handshakeAlertMagic tags a cleartext handshake-phase alert, distinguishing
// it from a Noise handshake message on the wire.
const handshakeAlertMagic = 0xA1

// SendHandshakeAlert sends an alert before the handshake has produced
// cipher state, mirroring DTLS/TLS's own alert protocol: a certificate
// rejected during verification is rejected before key derivation completes,
// so the alert cannot be AEAD-protected the way a post-handshake SendAlert
// is. It is sent in the clear, as real handshake alerts are.
func (e *Engine) SendHandshakeAlert(alert AlertType) error {
	if _, err := e.push([]byte{handshakeAlertMagic, byte(alert)}); err != nil {
		return fmt.Errorf("noisecore: push handshake alert: %w", err)
	}
	return nil
}

func (e *Engine) pushRecord(recType byte, payload []byte) error {
	ad := []byte{recType}
	ciphertext := e.sendCS.Encrypt(nil, ad, payload)
	out := make([]byte, 0, 1+len(ciphertext))
	out = append(out, recType)
	out = append(out, ciphertext...)
	if _, err := e.push(out); err != nil {
		return fmt.Errorf("noisecore: push record: %w", err)
	}
	return nil
}

// Recv consumes the single pending inbound datagram (if any) and decrypts
// it. For RecordData, n is the number of plaintext bytes copied into dst.
// For RecordAlert, the alert type is returned as n (cast from AlertType).
// A record that fails AEAD decryption/authentication yields RecordError,
// not RecordWouldBlock — the datagram was present, just invalid.
func (e *Engine) Recv(dst []byte) (RecordStatus, int, error) {
	if e.recvCS == nil {
		return RecordWouldBlock, 0, fmt.Errorf("noisecore: recv before handshake complete")
	}

	buf := make([]byte, e.dataMTU+64)
	n, ok := e.pull(buf)
	if !ok {
		return RecordWouldBlock, 0, nil
	}
	if n < 1 {
		return RecordClosed, 0, nil
	}

	recType := buf[0]
	plaintext, err := e.recvCS.Decrypt(nil, []byte{recType}, buf[1:n])
	if err != nil {
		return RecordError, 0, fmt.Errorf("noisecore: decrypt record: %w", err)
	}

	switch recType {
	case recTypeData:
		copied := copy(dst, plaintext)
		return RecordData, copied, nil
	case recTypeHeartbeatPing:
		return RecordHeartbeatPing, 0, nil
	case recTypeHeartbeatPong:
		return RecordHeartbeatPong, 0, nil
	case recTypeAlert:
		alert := 0
		if len(plaintext) > 0 {
			alert = int(plaintext[0])
		}
		return RecordAlert, alert, nil
	default:
		return RecordClosed, 0, fmt.Errorf("noisecore: unknown record type %d", recType)
	}
}

// Close drops the engine's references to its cipher states, so no further
// record can be sent or received. Safe to call multiple times.
func (e *Engine) Close() {
	e.sendCS = nil
	e.recvCS = nil
}

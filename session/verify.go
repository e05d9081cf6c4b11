package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"overlaycore/internal/noisecore"
	"overlaycore/internal/pgpcert"
)

// verifyPeerCertificate implements spec §4.6's certificate verification
// callback. It is installed as the engine's noisecore.VerifyFunc and so
// runs synchronously inside Handshake, with s.mu already held by the
// caller — it must never attempt to lock s.mu itself.
func (s *Session) verifyPeerCertificate(peerCertRaw []byte) error {
	if len(peerCertRaw) == 0 {
		return &noisecore.VerifyError{Alert: noisecore.AlertBadCertificate, Err: fmt.Errorf("session: empty certificate")}
	}

	// spec §4.6 step 2's "exactly one certificate in the peer chain" check
	// has no separate counterpart here: the handshake payload carries a
	// single raw certificate, not a chain, so there is nothing to count
	// (see DESIGN.md).
	peer, err := pgpcert.Parse(peerCertRaw)
	if err != nil {
		return &noisecore.VerifyError{Alert: noisecore.AlertUnsupportedCertificate, Err: err}
	}

	if s.policy.Import {
		if err := s.keyring.Import(peerCertRaw); err != nil {
			s.logger.Printf("session: optional certificate import failed: %v", err)
		}
	}

	fingerprintHex := peer.FingerprintHex()

	if s.policy.Keyserver != "" && s.keyserver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		raw, found, err := s.keyserver.FetchByFingerprint(ctx, fingerprintHex)
		cancel()
		if err != nil {
			s.logger.Printf("session: keyserver fetch for %s failed: %v", fingerprintHex, err)
		} else if found {
			if err := s.keyring.Import(raw); err != nil {
				s.logger.Printf("session: keyserver-fetched certificate import failed: %v", err)
			}
		}
	}

	key, found := s.keyring.Lookup(fingerprintHex)
	if !found {
		return &noisecore.VerifyError{Alert: noisecore.AlertNone, Err: fmt.Errorf("session: unknown peer key %s", fingerprintHex)}
	}

	if key.Disabled || key.Invalid || key.Revoked {
		return &noisecore.VerifyError{Alert: noisecore.AlertCertificateRevoked, Err: fmt.Errorf("session: key %s is revoked", fingerprintHex)}
	}
	if key.Expired {
		return &noisecore.VerifyError{Alert: noisecore.AlertCertificateExpired, Err: fmt.Errorf("session: key %s is expired", fingerprintHex)}
	}

	peerSubkeyHex, ok := peer.AuthSubkeyIDHex()
	if !ok {
		return &noisecore.VerifyError{Alert: noisecore.AlertCertificateRevoked, Err: fmt.Errorf("session: peer presented no authentication subkey")}
	}

	matched := false
	for _, sk := range key.Subkeys {
		if !strings.EqualFold(pgpcert.FingerprintTailHex(sk.FingerprintHex, 16), peerSubkeyHex) {
			continue
		}
		switch {
		case sk.Disabled || sk.Invalid || !sk.CanAuthenticate:
			return &noisecore.VerifyError{Alert: noisecore.AlertCertificateUnknown, Err: fmt.Errorf("session: matched subkey cannot authenticate")}
		case sk.Expired:
			return &noisecore.VerifyError{Alert: noisecore.AlertCertificateExpired, Err: fmt.Errorf("session: matched subkey expired")}
		case sk.Revoked:
			return &noisecore.VerifyError{Alert: noisecore.AlertCertificateRevoked, Err: fmt.Errorf("session: matched subkey revoked")}
		default:
			matched = true
		}
		break
	}
	if !matched {
		return &noisecore.VerifyError{Alert: noisecore.AlertCertificateRevoked, Err: fmt.Errorf("session: no subkey matches %s", peerSubkeyHex)}
	}

	now := time.Now()
	if peer.MaxUIDValidity(now) < s.policy.MinValidity {
		return &noisecore.VerifyError{Alert: noisecore.AlertCertificateExpired, Err: fmt.Errorf("session: UID validity below minimum for %s", fingerprintHex)}
	}

	prefix, err := pgpcert.Prefix(peer.Fingerprint())
	if err != nil {
		return &noisecore.VerifyError{Alert: noisecore.AlertBadCertificate, Err: err}
	}

	handle, err := s.gateway.ConnectPrefix(prefix, s)
	if err != nil {
		return &noisecore.VerifyError{Alert: noisecore.AlertBadCertificate, Err: fmt.Errorf("session: prefix registration: %w", err)}
	}
	s.prefixMu.Lock()
	s.prefixHandle = handle
	s.hasPrefixHandle = true
	s.prefixMu.Unlock()
	s.verified.Store(true)

	return nil
}

// Package pgpcert parses OpenPGP certificates presented during the
// handshake and derives the identity data the verification callback needs:
// fingerprint, authentication subkey id, and UID validity. It is grounded
// on github.com/ProtonMail/go-crypto/openpgp, the maintained successor to
// the frozen golang.org/x/crypto/openpgp.
package pgpcert

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// Certificate wraps a parsed OpenPGP entity, exposing exactly the data
// points spec'd verification needs.
type Certificate struct {
	entity *openpgp.Entity
	raw    []byte
}

// Parse decodes raw as a single binary OpenPGP certificate (one Entity).
func Parse(raw []byte) (*Certificate, error) {
	reader := packet.NewReader(bytes.NewReader(raw))
	entity, err := openpgp.ReadEntity(reader)
	if err != nil {
		return nil, fmt.Errorf("pgpcert: parse entity: %w", err)
	}
	return &Certificate{entity: entity, raw: raw}, nil
}

// Raw returns the original certificate bytes, e.g. for keyring import.
func (c *Certificate) Raw() []byte {
	return c.raw
}

// FingerprintHex returns the hex-encoded fingerprint of the primary key.
func (c *Certificate) FingerprintHex() string {
	return hex.EncodeToString(c.entity.PrimaryKey.Fingerprint)
}

// Fingerprint returns the raw fingerprint bytes of the primary key.
func (c *Certificate) Fingerprint() []byte {
	return c.entity.PrimaryKey.Fingerprint
}

// AuthSubkeyIDHex returns the hex-encoded key id of the subkey the
// certificate advertises for authentication: the first subkey carrying the
// authenticate capability or, when there is none, the certificate's only
// subkey if it has exactly one. Callers compare it against the fingerprint
// tails of a locally-trusted key's subkeys in the verification step.
func (c *Certificate) AuthSubkeyIDHex() (string, bool) {
	for _, sk := range c.entity.Subkeys {
		if sk.Sig != nil && sk.Sig.FlagsValid && sk.Sig.FlagAuthenticate {
			return fmt.Sprintf("%016X", sk.PublicKey.KeyId), true
		}
	}
	if len(c.entity.Subkeys) == 1 {
		sk := c.entity.Subkeys[0]
		return fmt.Sprintf("%016X", sk.PublicKey.KeyId), true
	}
	return "", false
}

// MaxUIDValidity returns the maximum validity level across all UIDs, where
// validity is derived from the presence and freshness of a self-signature:
// a self-signature with no expiry, or one not yet expired, counts as fully
// valid (100); an expired self-signature counts as 0; a UID with no
// self-signature at all is not counted.
func (c *Certificate) MaxUIDValidity(now time.Time) int {
	max := 0
	for _, id := range c.entity.Identities {
		if id.SelfSignature == nil {
			continue
		}
		v := 100
		if id.SelfSignature.SigLifetimeSecs != nil {
			expiry := id.SelfSignature.CreationTime.Add(time.Duration(*id.SelfSignature.SigLifetimeSecs) * time.Second)
			if now.After(expiry) {
				v = 0
			}
		}
		if v > max {
			max = v
		}
	}
	return max
}

// Revoked reports whether the primary key carries a revocation signature.
func (c *Certificate) Revoked(now time.Time) bool {
	return c.entity.Revoked(now)
}

// Expired reports whether the primary key's self-signature has lapsed.
func (c *Certificate) Expired(now time.Time) bool {
	ident := c.primaryIdentity()
	if ident == nil || ident.SelfSignature == nil {
		return false
	}
	sig := ident.SelfSignature
	if sig.KeyLifetimeSecs == nil {
		return false
	}
	expiry := c.entity.PrimaryKey.CreationTime.Add(time.Duration(*sig.KeyLifetimeSecs) * time.Second)
	return now.After(expiry)
}

func (c *Certificate) primaryIdentity() *openpgp.Identity {
	for _, id := range c.entity.Identities {
		if id.SelfSignature != nil && id.SelfSignature.IsPrimaryId != nil && *id.SelfSignature.IsPrimaryId {
			return id
		}
	}
	for _, id := range c.entity.Identities {
		return id
	}
	return nil
}

// Subkeys returns the full hex fingerprint and the authenticate/revoked/
// expired state of every subkey in the certificate — the data the
// verification callback's subkey match step iterates over (it compares the
// last 16 hex chars of each fingerprint).
func (c *Certificate) Subkeys(now time.Time) []SubkeyView {
	out := make([]SubkeyView, 0, len(c.entity.Subkeys))
	for _, sk := range c.entity.Subkeys {
		v := SubkeyView{
			FingerprintHex: hex.EncodeToString(sk.PublicKey.Fingerprint),
		}
		if sk.Sig != nil {
			v.CanAuthenticate = sk.Sig.FlagsValid && sk.Sig.FlagAuthenticate
			if sk.Sig.KeyLifetimeSecs != nil {
				expiry := sk.PublicKey.CreationTime.Add(time.Duration(*sk.Sig.KeyLifetimeSecs) * time.Second)
				v.Expired = now.After(expiry)
			}
		}
		v.Revoked = sk.Revocation != nil
		out = append(out, v)
	}
	return out
}

// SubkeyView is a read-only snapshot of one subkey's relevant state.
type SubkeyView struct {
	FingerprintHex  string
	CanAuthenticate bool
	Revoked         bool
	Expired         bool
}

// FingerprintTailHex returns the last n hex characters of a fingerprint,
// used by the subkey-match rule in the verification step.
func FingerprintTailHex(fingerprintHex string, n int) string {
	if len(fingerprintHex) <= n {
		return fingerprintHex
	}
	return fingerprintHex[len(fingerprintHex)-n:]
}

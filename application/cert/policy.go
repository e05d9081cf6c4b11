// Package cert declares the certificate-trust collaborators the Session
// verification callback depends on, so Sessions stay testable in isolation
// instead of reaching into global configuration (see Design Note on global
// configuration access in DESIGN.md).
package cert

import "context"

// Policy is the per-Gateway verification policy, sourced from the
// "import", "keyserver", and "validity" configuration keys.
type Policy struct {
	// Import, when true, imports a peer's raw certificate bytes into the
	// local keyring before looking it up.
	Import bool

	// Keyserver, when non-empty, is queried by fingerprint before the local
	// keyring lookup, and a certificate it returns is imported.
	Keyserver string

	// MinValidity is the minimum acceptable UID validity level; peers whose
	// maximum UID validity falls below this are rejected as expired.
	MinValidity int
}

// Subkey is a read-only view over one of a Key's OpenPGP subkeys.
type Subkey struct {
	FingerprintHex  string
	Disabled        bool
	Invalid         bool
	Revoked         bool
	Expired         bool
	CanAuthenticate bool
}

// Key is a read-only view over a locally-trusted OpenPGP key, as stored in
// the Keyring.
type Key struct {
	FingerprintHex string
	Disabled       bool
	Invalid        bool
	Revoked        bool
	Expired        bool
	MaxUIDValidity int
	Subkeys        []Subkey
}

// Keyring is the local keyring/keyserver subsystem's contract, as consumed
// by Session verification: import and lookup of OpenPGP keys by
// fingerprint.
type Keyring interface {
	// Lookup returns the locally-known key for fingerprintHex, or
	// found=false if it is not present.
	Lookup(fingerprintHex string) (key Key, found bool)

	// Import parses raw OpenPGP certificate bytes and adds the resulting
	// key to the keyring.
	Import(raw []byte) error
}

// KeyserverClient fetches a certificate from a remote keyserver by
// fingerprint, for the optional keyserver-fetch verification step.
type KeyserverClient interface {
	FetchByFingerprint(ctx context.Context, fingerprintHex string) (raw []byte, found bool, err error)
}

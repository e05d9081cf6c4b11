// Package keyring implements the local OpenPGP keyring: import of raw
// certificates and lookup of key trust state by fingerprint. It mirrors the
// teacher's encoding/json-based settings persistence
// (infrastructure/settings) rather than pulling in a database.
package keyring

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"overlaycore/application/cert"
	"overlaycore/internal/pgpcert"
)

// Store is an in-memory keyring with optional JSON snapshot persistence. It
// implements application/cert.Keyring.
type Store struct {
	mu   sync.RWMutex
	keys map[string]cert.Key

	// snapshotPath, when non-empty, is written after every Import so the
	// keyring survives a restart.
	snapshotPath string
}

// New returns an empty Store, optionally backed by a JSON snapshot file.
func New(snapshotPath string) *Store {
	s := &Store{
		keys:         make(map[string]cert.Key),
		snapshotPath: snapshotPath,
	}
	if snapshotPath != "" {
		_ = s.loadSnapshot()
	}
	return s
}

// Lookup implements application/cert.Keyring.
func (s *Store) Lookup(fingerprintHex string) (cert.Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[fingerprintHex]
	return k, ok
}

// Import implements application/cert.Keyring: parse raw bytes and admit the
// key, recording its current trust state at import time.
func (s *Store) Import(raw []byte) error {
	c, err := pgpcert.Parse(raw)
	if err != nil {
		return fmt.Errorf("keyring: import: %w", err)
	}

	now := time.Now()
	subkeys := c.Subkeys(now)
	out := make([]cert.Subkey, len(subkeys))
	for i, sk := range subkeys {
		out[i] = cert.Subkey{
			FingerprintHex:  sk.FingerprintHex,
			CanAuthenticate: sk.CanAuthenticate,
			Revoked:         sk.Revoked,
			Expired:         sk.Expired,
		}
	}

	key := cert.Key{
		FingerprintHex: c.FingerprintHex(),
		Revoked:        c.Revoked(now),
		Expired:        c.Expired(now),
		MaxUIDValidity: c.MaxUIDValidity(now),
		Subkeys:        out,
	}

	s.mu.Lock()
	s.keys[key.FingerprintHex] = key
	s.mu.Unlock()

	if s.snapshotPath != "" {
		return s.saveSnapshot()
	}
	return nil
}

// Disable marks a previously-imported key as disabled, e.g. in response to
// a configuration change revoking local trust in a peer.
func (s *Store) Disable(fingerprintHex string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[fingerprintHex]; ok {
		k.Disabled = true
		s.keys[fingerprintHex] = k
	}
}

type snapshot struct {
	Keys map[string]cert.Key `json:"keys"`
}

func (s *Store) saveSnapshot() error {
	s.mu.RLock()
	snap := snapshot{Keys: make(map[string]cert.Key, len(s.keys))}
	for k, v := range s.keys {
		snap.Keys[k] = v
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("keyring: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(s.snapshotPath, data, 0o600); err != nil {
		return fmt.Errorf("keyring: write snapshot: %w", err)
	}
	return nil
}

func (s *Store) loadSnapshot() error {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("keyring: read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("keyring: unmarshal snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = snap.Keys
	if s.keys == nil {
		s.keys = make(map[string]cert.Key)
	}
	return nil
}

package keyring

import (
	"path/filepath"
	"testing"

	"overlaycore/application/cert"
)

func TestStore_LookupAndDisable(t *testing.T) {
	s := New("")
	s.keys["ABCD"] = cert.Key{FingerprintHex: "ABCD", MaxUIDValidity: 100}

	key, found := s.Lookup("ABCD")
	if !found {
		t.Fatal("expected key to be found")
	}
	if key.Disabled {
		t.Fatal("key should not start disabled")
	}

	s.Disable("ABCD")
	key, _ = s.Lookup("ABCD")
	if !key.Disabled {
		t.Fatal("key should be disabled after Disable")
	}

	if _, found := s.Lookup("unknown"); found {
		t.Fatal("lookup of unknown fingerprint should miss")
	}
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.json")

	s := New(path)
	s.keys["ABCD"] = cert.Key{FingerprintHex: "ABCD", MaxUIDValidity: 100}
	if err := s.saveSnapshot(); err != nil {
		t.Fatalf("saveSnapshot: %v", err)
	}

	reloaded := New(path)
	key, found := reloaded.Lookup("ABCD")
	if !found {
		t.Fatal("expected key to survive snapshot round trip")
	}
	if key.MaxUIDValidity != 100 {
		t.Fatalf("MaxUIDValidity = %d, want 100", key.MaxUIDValidity)
	}
}

func TestStore_LoadMissingSnapshotIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s := New(path)
	if _, found := s.Lookup("anything"); found {
		t.Fatal("empty store should find nothing")
	}
}

// Package config loads the gateway daemon's on-disk configuration and
// turns its "import"/"keyserver"/"validity" keys into a cert.Policy (spec
// §6's consumed configuration keys; Design Note 5's plumbed-not-global
// policy object). Persistence mirrors the teacher's
// infrastructure/PAL/configuration/server JSON configuration style.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"overlaycore/application/cert"
)

// File is the on-disk shape of the gateway configuration.
type File struct {
	ListenAddress       string `json:"listenAddress"`
	CertificatePath     string `json:"certificatePath"`
	KeyringSnapshotPath string `json:"keyringSnapshotPath"`

	// Import, Keyserver, and MinValidity feed directly into cert.Policy.
	Import      bool   `json:"import"`
	Keyserver   string `json:"keyserver"`
	MinValidity int    `json:"validity"`
}

// Load reads and parses a File from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// Policy projects the verification-relevant fields into a cert.Policy.
func (f *File) Policy() *cert.Policy {
	return &cert.Policy{
		Import:      f.Import,
		Keyserver:   f.Keyserver,
		MinValidity: f.MinValidity,
	}
}

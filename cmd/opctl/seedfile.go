package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/punchamoorthee/ledgergate/internal/hashchain"
)

// SeedFile is the operator's secret. Only the seed needs protecting: every
// token is derived from it.
type SeedFile struct {
	Seed   string `json:"seed"`
	Length int    `json:"length"`
	Digest string `json:"digest"`
}

func NewSeedFile(length int, digest string) (*SeedFile, error) {
	if _, err := hashchain.ByName(digest); err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("length must be positive, got %d", length)
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return &SeedFile{Seed: hex.EncodeToString(buf), Length: length, Digest: digest}, nil
}

// Save writes the file with owner-only permissions and refuses to overwrite
// an existing chain.
func (s *SeedFile) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists; remove it to start a new chain", path)
		}
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func LoadSeedFile(path string) (*SeedFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s SeedFile
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &s, nil
}

func (s *SeedFile) Chain() (*hashchain.Chain, error) {
	digest, err := hashchain.ByName(s.Digest)
	if err != nil {
		return nil, err
	}
	return hashchain.NewChain(s.Seed, s.Length, digest)
}

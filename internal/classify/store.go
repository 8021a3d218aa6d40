package classify

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"courtline/internal/apperr"
	"courtline/internal/atomicfile"
	"courtline/internal/domain"
)

// Registry maps character names to their hidden role.
type Registry map[string]domain.Classification

// Store persists a case's registry.
type Store interface {
	Load() (Registry, error)
	Save(Registry) error
	Clear() error
}

// FileStore keeps the registry as base64-encoded JSON so classifications do
// not show up in a casual grep of the case directory.
type FileStore struct {
	Path string
	Now  func() time.Time
}

// Load reads the registry. A missing file is an empty registry. An unreadable
// one is moved aside and reported as corrupt together with an empty registry.
func (s FileStore) Load() (Registry, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Registry{}, nil
		}
		return Registry{}, s.corrupt(err)
	}
	reg, err := Decode(data)
	if err != nil {
		return Registry{}, s.corrupt(err)
	}
	return reg, nil
}

func (s FileStore) corrupt(cause error) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if _, err := atomicfile.Quarantine(s.Path, now().UTC().Format("20060102T150405")); err != nil {
		cause = errors.Join(cause, err)
	}
	return apperr.Corrupt(apperr.CodeCorruptRegistry, s.Path, cause)
}

// Save writes the registry atomically.
func (s FileStore) Save(reg Registry) error {
	data, err := Encode(reg)
	if err != nil {
		return err
	}
	return atomicfile.Write(s.Path, data, 0o600)
}

// Clear removes the registry file.
func (s FileStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove registry: %w", err)
	}
	return nil
}

// Encode renders a registry in its stored form.
func Encode(reg Registry) ([]byte, error) {
	if reg == nil {
		reg = Registry{}
	}
	raw, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal registry: %w", err)
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out, nil
}

// Decode parses the stored form and rejects unknown role values.
func Decode(data []byte) (Registry, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	var reg Registry
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if reg == nil {
		reg = Registry{}
	}
	for name, c := range reg {
		if !c.Valid() {
			return nil, fmt.Errorf("character %s has unknown classification %q", name, c)
		}
	}
	return reg, nil
}

// Package bundle packs converted chapters into a single archive.
// A bundle is a tar stream, xz or gzip compressed, holding manifest.json
// followed by one chapters/<id>.ptx file per chapter.
package bundle

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FormatVersion is the current bundle format version.
const FormatVersion = "1.0.0"

// Manifest represents the bundle manifest (manifest.json).
type Manifest struct {
	FormatVersion string    `json:"format_version"`
	BundleID      string    `json:"bundle_id"`
	CreatedAt     string    `json:"created_at"`
	Generator     Generator `json:"generator"`
	Chapters      []*Entry  `json:"chapters"`
}

// Generator describes the tool that produced the bundle.
type Generator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Entry describes one chapter in the bundle.
type Entry struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Source    string `json:"source,omitempty"`
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	BLAKE3    string `json:"blake3"`
	SizeBytes int64  `json:"size_bytes"`
}

// NewManifest creates an empty manifest with a fresh bundle id.
func NewManifest(generator Generator) *Manifest {
	return &Manifest{
		FormatVersion: FormatVersion,
		BundleID:      uuid.New().String(),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Generator:     generator,
	}
}

// Entry returns the chapter with the given id, or nil.
func (m *Manifest) Entry(id string) *Entry {
	for _, e := range m.Chapters {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// ToJSON serializes the manifest to JSON.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ParseManifest parses a manifest from JSON.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

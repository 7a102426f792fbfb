package bundle

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/qmdptx/core/cas"
	"github.com/FocuswithJustin/qmdptx/core/errors"
)

// Archive is a bundle read back from disk.
type Archive struct {
	Manifest *Manifest
	chapters map[string][]byte
}

// Chapter returns the bytes of chapter id.
func (a *Archive) Chapter(id string) ([]byte, bool) {
	data, ok := a.chapters[id]
	return data, ok
}

// DetectCompression detects the compression type of a bundle archive.
func DetectCompression(archivePath string) (Compression, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", errors.NewIO("open", archivePath, err)
	}
	defer file.Close()

	magic := make([]byte, 6)
	n, err := io.ReadFull(file, magic)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", errors.NewIO("read magic bytes", archivePath, err)
	}
	if n < 2 {
		return "", errors.NewValidation("archive", "file too small to detect compression")
	}

	// gzip: 1f 8b
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}
	// xz: fd 37 7a 58 5a 00
	if n == 6 && magic[0] == 0xfd && magic[1] == 0x37 && magic[2] == 0x7a &&
		magic[3] == 0x58 && magic[4] == 0x5a && magic[5] == 0x00 {
		return CompressionXZ, nil
	}

	return "", errors.NewUnsupported("compression format", "unknown magic bytes")
}

// Open reads a bundle and verifies every chapter against the digests in
// its manifest.
func Open(archivePath string) (*Archive, error) {
	compression, err := DetectCompression(archivePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.NewIO("open", archivePath, err)
	}
	defer file.Close()

	var r io.Reader
	switch compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	default:
		xr, err := xz.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		r = xr
	}

	var manifest *Manifest
	files := make(map[string][]byte)
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		name := path.Clean(header.Name)
		if name == "manifest.json" {
			manifest, err = ParseManifest(data)
			if err != nil {
				return nil, errors.NewParse("bundle manifest", archivePath, err.Error())
			}
			continue
		}
		files[name] = data
	}

	if manifest == nil {
		return nil, errors.NewValidation("archive", "archive does not contain manifest.json")
	}

	a := &Archive{Manifest: manifest, chapters: make(map[string][]byte, len(manifest.Chapters))}
	for _, e := range manifest.Chapters {
		data, ok := files[path.Clean(e.Path)]
		if !ok {
			return nil, errors.NewValidation(e.ID, "chapter missing from archive")
		}
		if cas.Hash(data) != e.SHA256 {
			return nil, errors.NewValidation(e.ID, "chapter does not match its sha256")
		}
		a.chapters[e.ID] = data
	}
	return a, nil
}

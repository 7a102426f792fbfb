package bundle

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/qmdptx/core/cas"
	"github.com/FocuswithJustin/qmdptx/core/errors"
)

// Injectable functions for testing
var (
	gzipNewWriterLevel = gzip.NewWriterLevel
	xzNewWriter        = xz.NewWriter
	writeToTarFunc     = writeToTarImpl
)

// Compression specifies the compression algorithm for bundle archives.
type Compression string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ Compression = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip Compression = "gzip"
)

// CompressionFor picks the compression from an archive file name.
func CompressionFor(name string) (Compression, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return CompressionXZ, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return CompressionGzip, nil
	}
	return "", errors.NewUnsupported("bundle extension", name)
}

// Bundle collects chapters before packing. Chapter bytes live in a cas
// store; the bundle only keeps their digests.
type Bundle struct {
	Manifest *Manifest
	store    *cas.Store
}

// New creates an empty bundle backed by store.
func New(store *cas.Store, generator Generator) *Bundle {
	return &Bundle{
		Manifest: NewManifest(generator),
		store:    store,
	}
}

// Add stores data and records it as chapter id. Adding an id twice
// replaces the earlier entry.
func (b *Bundle) Add(id, title, source string, data []byte) (*Entry, error) {
	if id == "" {
		return nil, errors.NewValidation("id", "chapter id is required")
	}
	hash, err := b.store.Put(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store chapter")
	}

	entry := &Entry{
		ID:        id,
		Title:     title,
		Source:    source,
		Path:      path.Join("chapters", id+".ptx"),
		SHA256:    hash,
		BLAKE3:    cas.Blake3Hash(data),
		SizeBytes: int64(len(data)),
	}
	for i, e := range b.Manifest.Chapters {
		if e.ID == id {
			b.Manifest.Chapters[i] = entry
			return entry, nil
		}
	}
	b.Manifest.Chapters = append(b.Manifest.Chapters, entry)
	return entry, nil
}

// Pack writes the bundle to archivePath.
func (b *Bundle) Pack(archivePath string, compression Compression) (err error) {
	file, err := os.Create(archivePath)
	if err != nil {
		return errors.NewIO("write", archivePath, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = errors.NewIO("write", archivePath, cerr)
		}
		if err != nil {
			os.Remove(archivePath)
		}
	}()

	var compressWriter io.WriteCloser
	switch compression {
	case CompressionGzip:
		compressWriter, err = gzipNewWriterLevel(file, gzip.BestCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
	case CompressionXZ, "":
		compressWriter, err = xzNewWriter(file)
		if err != nil {
			return fmt.Errorf("failed to create xz writer: %w", err)
		}
	default:
		return errors.NewUnsupported("compression", string(compression))
	}

	tarWriter := tar.NewWriter(compressWriter)
	if err := b.writeEntries(tarWriter); err != nil {
		return err
	}
	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := compressWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish compression: %w", err)
	}
	return nil
}

func (b *Bundle) writeEntries(tw *tar.Writer) error {
	manifestData, err := b.Manifest.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := writeToTarFunc(tw, "manifest.json", manifestData); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	for _, e := range b.Manifest.Chapters {
		data, err := b.store.Get(e.SHA256)
		if err != nil {
			return fmt.Errorf("failed to load chapter %s: %w", e.ID, err)
		}
		if err := writeToTarFunc(tw, e.Path, data); err != nil {
			return fmt.Errorf("failed to write chapter %s: %w", e.ID, err)
		}
	}
	return nil
}

// writeToTarImpl writes a file to the tar archive.
func writeToTarImpl(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

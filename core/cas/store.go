// Package cas is the content-addressed output cache.
// Converted chapters are stored by their SHA-256 digest, so identical
// output is kept once. Key files map a BLAKE3 build key (see BuildKey) to
// the digest of the output that key produced.
package cas

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/zeebo/blake3"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for writing to temp files (for testing).
var tempFileWrite = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// tempFileClose is a function variable for closing temp files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

// ErrBlobNotFound is returned when a blob or key is not in the store.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned when a hash string is not 64 lowercase hex digits.
var ErrInvalidHash = errors.New("invalid hash format")

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Store is a content-addressed store rooted at a directory.
//
// Layout:
//
//	<root>/blobs/sha256/<first2>/<sha256>
//	<root>/keys/blake3/<first2>/<key>.json
type Store struct {
	root string
}

// keyPointer is the content of a key file.
type keyPointer struct {
	SHA256 string `json:"sha256"`
}

// NewStore creates a store at root, creating the directory layout if needed.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{
		filepath.Join(root, "blobs", "sha256"),
		filepath.Join(root, "keys", "blake3"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the directory the store lives in.
func (s *Store) Root() string {
	return s.root
}

// Put stores data and returns its SHA-256 digest. Storing content that is
// already present is a no-op.
func (s *Store) Put(data []byte) (string, error) {
	hash := Hash(data)
	blobPath := s.blobPath(hash)
	if _, err := os.Stat(blobPath); err == nil {
		return hash, nil
	}
	if err := writeAtomic(blobPath, data, ".blob-*"); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return hash, nil
}

// Get returns the blob with the given SHA-256 digest.
func (s *Store) Get(hash string) ([]byte, error) {
	if !isValidHash(hash) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.blobPath(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// Has reports whether a blob with the given digest is stored.
func (s *Store) Has(hash string) bool {
	if !isValidHash(hash) {
		return false
	}
	_, err := os.Stat(s.blobPath(hash))
	return err == nil
}

// Link records that build key produced the blob with digest hash.
// A later Link for the same key replaces the earlier one.
func (s *Store) Link(key, hash string) error {
	if !isValidHash(key) || !isValidHash(hash) {
		return ErrInvalidHash
	}
	data, err := json.Marshal(keyPointer{SHA256: hash})
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}
	if err := writeAtomic(s.keyPath(key), data, ".key-*"); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// Resolve returns the digest linked to key. ErrBlobNotFound is returned
// when the key is unknown or its blob has gone missing.
func (s *Store) Resolve(key string) (string, error) {
	if !isValidHash(key) {
		return "", ErrInvalidHash
	}
	data, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrBlobNotFound
		}
		return "", fmt.Errorf("failed to read key: %w", err)
	}

	var p keyPointer
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("failed to parse key: %w", err)
	}
	if !s.Has(p.SHA256) {
		return "", ErrBlobNotFound
	}
	return p.SHA256, nil
}

// Lookup resolves key and returns the blob it points to.
func (s *Store) Lookup(key string) ([]byte, string, error) {
	hash, err := s.Resolve(key)
	if err != nil {
		return nil, "", err
	}
	data, err := s.Get(hash)
	if err != nil {
		return nil, "", err
	}
	return data, hash, nil
}

// blobPath returns <root>/blobs/sha256/<first2>/<hash>.
func (s *Store) blobPath(hash string) string {
	return filepath.Join(s.root, "blobs", "sha256", hash[:2], hash)
}

// keyPath returns <root>/keys/blake3/<first2>/<key>.json.
func (s *Store) keyPath(key string) string {
	return filepath.Join(s.root, "keys", "blake3", key[:2], key+".json")
}

// writeAtomic writes data to a temp file next to path and renames it into
// place.
func writeAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create prefix directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFileWrite(tempFile, data); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return err
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename: %w", err)
	}
	return nil
}

func isValidHash(hash string) bool {
	return hashPattern.MatchString(hash)
}

// Hash computes the SHA-256 digest of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake3Hash computes the BLAKE3 digest of data.
func Blake3Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// BuildKey derives a BLAKE3 key from the inputs of a conversion. Each part
// is length prefixed, so ("ab", "c") and ("a", "bc") give different keys.
func BuildKey(parts ...string) string {
	h := blake3.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

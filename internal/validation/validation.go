// Package validation checks paths, names and file contents supplied by
// users before the converter touches the filesystem.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Limits on user input (CWE-400).
const (
	// MaxSourceSize is the largest source document accepted (32 MB).
	MaxSourceSize = 32 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
	// sniffLength is how much of a file IsLikelyText needs to see.
	sniffLength = 512
)

// Common validation errors.
var (
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrInvalidID        = errors.New("invalid id")
	ErrPathTooLong      = errors.New("path too long")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
)

// idPattern accepts ids usable both as xml:id values and as file names.
var idPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)

// ValidatePath checks a path for emptiness, excessive length and control
// characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// ValidateFilename checks that filename is a single safe path element.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if len(filename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if filename == "." || filename == ".." {
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	}
	if strings.ContainsAny(filename, "/\\") {
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	}
	for _, r := range filename {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
		}
	}
	if strings.HasPrefix(filename, "-") {
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// ValidateID checks a chapter id. Ids become xml:id attributes and bundle
// file names, so they must be XML names without a colon.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return ValidateFilename(id + ".ptx")
}

// IsLikelyText reports whether the start of data looks like text: no NUL
// bytes and at least 95% printable ASCII or whitespace among the
// non UTF-8 bytes. Empty input counts as text.
func IsLikelyText(data []byte) bool {
	if len(data) > sniffLength {
		data = data[:sniffLength]
	}
	if len(data) == 0 {
		return true
	}
	if bytes.IndexByte(data, 0) != -1 {
		return false
	}

	printable, control := 0, 0
	for _, b := range data {
		switch {
		case b >= 0x20 && b <= 0x7e, b == '\t', b == '\n', b == '\r':
			printable++
		case b < 0x20:
			control++
		}
	}
	if printable == 0 {
		// All bytes are UTF-8 sequences.
		return control == 0
	}
	return float64(printable)/float64(printable+control) > 0.95
}

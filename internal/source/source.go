// Package source loads chapter sources from disk and prepares their text
// for conversion.
package source

import (
	"bytes"
	stderrors "errors"
	"io/fs"
	"os"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/FocuswithJustin/qmdptx/core/errors"
	"github.com/FocuswithJustin/qmdptx/internal/validation"
)

// Injectable functions for testing
var (
	osStat     = os.Stat
	osReadFile = os.ReadFile
)

// Document is a loaded source file.
type Document struct {
	Path string

	// Text is the markdown with line endings normalised and any front
	// matter removed.
	Text string

	// Meta holds the front matter, if the file had any.
	Meta Meta

	// HasFrontMatter reports whether a front matter block was removed.
	HasFrontMatter bool
}

// Meta is the part of the YAML front matter the converter uses.
type Meta struct {
	Title string `yaml:"title" toml:"title" json:"title"`
	ID    string `yaml:"id" toml:"id" json:"id"`
}

// Check reports whether path exists and is a regular file. A missing file
// is a NotFoundError.
func Check(path string) error {
	info, err := osStat(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return &errors.NotFoundError{Resource: "source file", ID: path, Err: err}
		}
		return errors.NewIO("read", path, err)
	}
	if info.IsDir() {
		return errors.NewValidation(path, "source is a directory")
	}
	if info.Size() > validation.MaxSourceSize {
		return errors.NewValidation(path, "source exceeds the size limit")
	}
	return nil
}

// Load reads and parses the source at path.
func Load(path string) (*Document, error) {
	if err := Check(path); err != nil {
		return nil, err
	}
	data, err := osReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return Parse(path, data)
}

// Parse prepares data read from path.
func Parse(path string, data []byte) (*Document, error) {
	if !validation.IsLikelyText(data) {
		return nil, errors.NewValidation(path, "source is not a text file")
	}

	text := normalizeNewlines(string(data))
	doc := &Document{Path: path, Text: text}

	if !strings.HasPrefix(text, "---\n") {
		return doc, nil
	}

	var meta Meta
	rest, err := frontmatter.Parse(strings.NewReader(text), &meta)
	if err != nil {
		return nil, &errors.ParseError{Format: "front matter", Path: path, Message: err.Error(), Err: err}
	}
	if len(rest) < len(text) {
		doc.HasFrontMatter = true
		doc.Meta = meta
		doc.Text = string(bytes.TrimLeft(rest, "\n"))
	}
	return doc, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

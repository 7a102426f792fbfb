// Package manifest describes a book: the chapters to convert and the
// options they are converted with.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/FocuswithJustin/qmdptx/core/errors"
	"github.com/FocuswithJustin/qmdptx/core/pretext"
	pathcheck "github.com/FocuswithJustin/qmdptx/internal/validation"
)

var languagePattern = regexp.MustCompile(`^\w+$`)

// Chapter is one document of the book.
type Chapter struct {
	// ID becomes the chapter's xml:id.
	ID string `json:"id"`
	// Title is the chapter title; empty means take it from the source's
	// front matter.
	Title string `json:"title,omitempty"`
	// Source is the .qmd file to read.
	Source string `json:"source"`
	// Output is the .ptx file to write.
	Output string `json:"output"`
}

// Validate implements validation.Validatable.
func (c Chapter) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required, validation.By(checkWith(pathcheck.ValidateID))),
		validation.Field(&c.Source, validation.Required, validation.By(checkWith(pathcheck.ValidatePath))),
		validation.Field(&c.Output, validation.Required, validation.By(checkWith(pathcheck.ValidatePath))),
	)
}

// Manifest is the JSON book description.
type Manifest struct {
	ImagePrefix     string    `json:"image_prefix,omitempty"`
	ImageDir        string    `json:"image_dir,omitempty"`
	DefaultLanguage string    `json:"default_language,omitempty"`
	WrapChapter     bool      `json:"wrap_chapter,omitempty"`
	Chapters        []Chapter `json:"chapters"`
}

// Default returns the book converted when no manifest is given: the two
// data visualization chapters, written to /tmp.
func Default() *Manifest {
	m := &Manifest{
		Chapters: []Chapter{
			{
				ID:     "ch-data-visualization-principles",
				Title:  "Data visualization principles",
				Source: "dataviz/dataviz-principles.qmd",
				Output: "/tmp/chapter9.ptx",
			},
			{
				ID:     "ch-data-visualization-in-practice",
				Title:  "Data visualization in practice",
				Source: "dataviz/dataviz-in-practice.qmd",
				Output: "/tmp/chapter10.ptx",
			},
		},
	}
	m.applyDefaults()
	return m
}

// Load reads the manifest at path. Relative chapter paths are resolved
// against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{Resource: "manifest", ID: path, Err: err}
		}
		return nil, errors.NewIO("read", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		var perr *errors.ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	m.resolve(filepath.Dir(path))
	return m, nil
}

// Parse decodes and validates a manifest. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, &errors.ParseError{Format: "manifest", Message: err.Error(), Err: err}
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest and every chapter in it.
func (m *Manifest) Validate() error {
	err := validation.ValidateStruct(m,
		validation.Field(&m.DefaultLanguage, validation.Match(languagePattern)),
		validation.Field(&m.Chapters, validation.Required, validation.By(uniqueIDs)),
	)
	if err != nil {
		return &errors.ValidationError{Field: "manifest", Message: err.Error(), Err: err}
	}
	return nil
}

// Options returns the conversion options the manifest selects.
func (m *Manifest) Options() pretext.Options {
	return pretext.Options{
		ImagePrefix:     m.ImagePrefix,
		ImageDir:        m.ImageDir,
		DefaultLanguage: m.DefaultLanguage,
		WrapChapter:     m.WrapChapter,
	}
}

// Chapter returns the chapter with the given id.
func (m *Manifest) Chapter(id string) (Chapter, bool) {
	for _, c := range m.Chapters {
		if c.ID == id {
			return c, true
		}
	}
	return Chapter{}, false
}

func (m *Manifest) applyDefaults() {
	d := pretext.DefaultOptions()
	if m.ImagePrefix == "" {
		m.ImagePrefix = d.ImagePrefix
	}
	if m.ImageDir == "" {
		m.ImageDir = d.ImageDir
	}
	if m.DefaultLanguage == "" {
		m.DefaultLanguage = d.DefaultLanguage
	}
}

func (m *Manifest) resolve(dir string) {
	for i := range m.Chapters {
		c := &m.Chapters[i]
		if !filepath.IsAbs(c.Source) {
			c.Source = filepath.Join(dir, c.Source)
		}
		if !filepath.IsAbs(c.Output) {
			c.Output = filepath.Join(dir, c.Output)
		}
	}
}

func uniqueIDs(value any) error {
	chapters, _ := value.([]Chapter)
	seen := make(map[string]bool, len(chapters))
	for _, c := range chapters {
		if seen[c.ID] {
			return validation.NewError("manifest.chapters.duplicate_id", fmt.Sprintf("duplicate chapter id %q", c.ID))
		}
		seen[c.ID] = true
	}
	return nil
}

// checkWith adapts a plain string check to a validation rule.
func checkWith(check func(string) error) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		return check(s)
	}
}

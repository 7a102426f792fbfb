package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "source file", ID: "dataviz/intro.qmd"},
			wantMsg:  "source file not found: dataviz/intro.qmd",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "chapter"},
			wantMsg:  "chapter not found",
			wantBase: ErrNotFound,
		},
		{
			name:     "wrapping fs error",
			err:      &NotFoundError{Resource: "source file", ID: "a.qmd", Err: fs.ErrNotExist},
			wantMsg:  "source file not found: a.qmd",
			wantBase: fs.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, tt.wantBase) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.wantBase)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidation("chapters[0].id", "is required")
	if got, want := err.Error(), "validation failed for chapters[0].id: is required"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should unwrap to ErrInvalidInput")
	}

	bare := &ValidationError{Message: "empty manifest"}
	if got, want := bare.Error(), "validation failed: empty manifest"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIOError(t *testing.T) {
	underlying := fmt.Errorf("disk full")
	tests := []struct {
		name    string
		err     *IOError
		wantMsg string
	}{
		{"with path", NewIO("write", "/tmp/chapter9.ptx", underlying), "failed to write /tmp/chapter9.ptx: disk full"},
		{"without path", NewIO("read", "", underlying), "failed to read: disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, underlying) {
				t.Error("IOError should unwrap to the underlying error")
			}
		})
	}
}

func TestParseError(t *testing.T) {
	err := NewParse("manifest", "book.json", "unexpected end of JSON input")
	if got, want := err.Error(), "failed to parse manifest at book.json: unexpected end of JSON input"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ParseError should unwrap to ErrInvalidInput")
	}

	cause := fmt.Errorf("yaml: line 2")
	wrapped := &ParseError{Format: "front matter", Message: "bad yaml", Err: cause}
	if got, want := wrapped.Error(), "failed to parse front matter: bad yaml"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("ParseError should unwrap to its cause")
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("bundle compression", "unknown extension .rar")
	if got, want := err.Error(), "unsupported bundle compression: unknown extension .rar"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("UnsupportedError should unwrap to ErrUnsupported")
	}
	if got, want := NewUnsupported("format", "").Error(), "unsupported format"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	base := NewNotFound("source file", "x.qmd")
	err := Wrap(base, "converting ch-x")
	if got, want := err.Error(), "converting ch-x: source file not found: x.qmd"; got != want {
		t.Errorf("Wrap() = %q, want %q", got, want)
	}

	var nf *NotFoundError
	if !As(err, &nf) || nf.ID != "x.qmd" {
		t.Error("As should find the wrapped NotFoundError")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("ErrNotFound should be visible through the wrap")
	}
}

func TestDescribe(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing source", NewNotFound("source file", "a.qmd"), "Error: Source file not found: a.qmd"},
		{"wrapped missing source", fmt.Errorf("loading: %w", NewNotFound("source file", "a.qmd")), "Error: Source file not found: a.qmd"},
		{"other not found", NewNotFound("manifest", "book.json"), "Error: manifest not found: book.json"},
		{"read", NewIO("read", "a.qmd", cause), "Error reading a.qmd: permission denied"},
		{"write", NewIO("write", "/tmp/a.ptx", cause), "Error writing /tmp/a.ptx: permission denied"},
		{"open", NewIO("open", "b.tar.xz", cause), "Error: failed to open b.tar.xz: permission denied"},
		{"validation", NewValidation("check", "1 of 2 files not well-formed"), "Error: validation failed for check: 1 of 2 files not well-formed"},
		{"parse", NewParse("manifest", "book.json", "bad json"), "Error: failed to parse manifest at book.json: bad json"},
		{"unsupported", NewUnsupported("bundle extension", "b.rar"), "Error: unsupported bundle extension: b.rar"},
		{"outermost typed error wins", Wrap(&ValidationError{Field: "state", Message: "bad", Err: NewIO("read", "x", cause)}, "opening"), "Error: validation failed for state: bad"},
		{"unexpected", fmt.Errorf("boom"), "Unexpected error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

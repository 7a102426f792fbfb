package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qerrors "github.com/FocuswithJustin/qmdptx/core/errors"
)

func TestDefault(t *testing.T) {
	m := Default()
	if err := m.Validate(); err != nil {
		t.Fatalf("default manifest invalid: %v", err)
	}
	if len(m.Chapters) != 2 {
		t.Fatalf("got %d chapters, want 2", len(m.Chapters))
	}

	want := []Chapter{
		{"ch-data-visualization-principles", "Data visualization principles", "dataviz/dataviz-principles.qmd", "/tmp/chapter9.ptx"},
		{"ch-data-visualization-in-practice", "Data visualization in practice", "dataviz/dataviz-in-practice.qmd", "/tmp/chapter10.ptx"},
	}
	for i, c := range want {
		if m.Chapters[i] != c {
			t.Errorf("chapter %d = %+v, want %+v", i, m.Chapters[i], c)
		}
	}

	opts := m.Options()
	if opts.ImagePrefix != "img/" || opts.ImageDir != "dataviz/" || opts.DefaultLanguage != "r" || opts.WrapChapter {
		t.Errorf("default options = %+v", opts)
	}
}

func TestParse(t *testing.T) {
	data := `{
  "image_dir": "book/",
  "default_language": "python",
  "wrap_chapter": true,
  "chapters": [
    {"id": "ch-one", "title": "One", "source": "one.qmd", "output": "out/one.ptx"},
    {"id": "ch-two", "source": "two.qmd", "output": "out/two.ptx"}
  ]
}`
	m, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	opts := m.Options()
	if opts.ImagePrefix != "img/" || opts.ImageDir != "book/" || opts.DefaultLanguage != "python" || !opts.WrapChapter {
		t.Errorf("options = %+v", opts)
	}
	if c, ok := m.Chapter("ch-two"); !ok || c.Title != "" || c.Source != "two.qmd" {
		t.Errorf("Chapter(ch-two) = %+v, %v", c, ok)
	}
	if _, ok := m.Chapter("ch-three"); ok {
		t.Error("Chapter(ch-three) should not exist")
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		parseErr  bool
		errSubstr string
	}{
		{"not json", `{"chapters": [`, true, ""},
		{"unknown field", `{"chapter": []}`, true, ""},
		{"no chapters", `{"chapters": []}`, false, "chapters"},
		{"missing id", `{"chapters": [{"source": "a.qmd", "output": "a.ptx"}]}`, false, "id"},
		{"bad id", `{"chapters": [{"id": "1 bad", "source": "a.qmd", "output": "a.ptx"}]}`, false, "id"},
		{"missing source", `{"chapters": [{"id": "a", "output": "a.ptx"}]}`, false, "source"},
		{"control char in output", `{"chapters": [{"id": "a", "source": "a.qmd", "output": "a\u0007.ptx"}]}`, false, "output"},
		{"duplicate ids", `{"chapters": [{"id": "a", "source": "a.qmd", "output": "a.ptx"}, {"id": "a", "source": "b.qmd", "output": "b.ptx"}]}`, false, "duplicate"},
		{"bad language", `{"default_language": "c++", "chapters": [{"id": "a", "source": "a.qmd", "output": "a.ptx"}]}`, false, "default_language"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse should fail")
			}
			if tt.parseErr {
				var perr *qerrors.ParseError
				if !errors.As(err, &perr) {
					t.Errorf("want ParseError, got %T: %v", err, err)
				}
				return
			}
			var verr *qerrors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("want ValidationError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("error %q does not mention %q", err, tt.errSubstr)
			}
		})
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.json")
	data := `{"chapters": [
		{"id": "rel", "source": "src/a.qmd", "output": "out/a.ptx"},
		{"id": "abs", "source": "/abs/b.qmd", "output": "/abs/b.ptx"}
	]}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := m.Chapters[0].Source; got != filepath.Join(dir, "src", "a.qmd") {
		t.Errorf("relative source resolved to %s", got)
	}
	if got := m.Chapters[0].Output; got != filepath.Join(dir, "out", "a.ptx") {
		t.Errorf("relative output resolved to %s", got)
	}
	if got := m.Chapters[1].Source; got != "/abs/b.qmd" {
		t.Errorf("absolute source changed to %s", got)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	var nf *qerrors.NotFoundError
	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.As(err, &nf) {
		t.Errorf("missing manifest: %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{"), 0644)
	var perr *qerrors.ParseError
	if _, err := Load(bad); !errors.As(err, &perr) || perr.Path != bad {
		t.Errorf("malformed manifest: %v", err)
	}
}

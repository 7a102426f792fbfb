package attrs

import (
	"errors"
	"reflect"
	"testing"

	qerrors "github.com/FocuswithJustin/qmdptx/core/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		id      string
		classes []string
		words   []string
		values  map[string]string
	}{
		{"identifier", "{#sec-trends}", "sec-trends", nil, nil, map[string]string{}},
		{"class", "{.callout-note}", "", []string{"callout-note"}, nil, map[string]string{}},
		{"chunk header", "{r}", "", nil, []string{"r"}, map[string]string{}},
		{"chunk header with options", "{r, echo=FALSE, fig.width=6}", "", nil, []string{"r"}, map[string]string{"echo": "FALSE", "fig.width": "6"}},
		{"space separated options", "{python echo=false}", "", nil, []string{"python"}, map[string]string{"echo": "false"}},
		{"quoted value", `{.callout-note title="Key idea, restated"}`, "", []string{"callout-note"}, nil, map[string]string{"title": "Key idea, restated"}},
		{"mixed", `{#fig-bars .wide width="80%"}`, "fig-bars", []string{"wide"}, nil, map[string]string{"width": "80%"}},
		{"padding", "{ #sec-a }", "sec-a", nil, nil, map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if a.ID != tt.id {
				t.Errorf("ID = %q, want %q", a.ID, tt.id)
			}
			if !reflect.DeepEqual(a.Classes, tt.classes) {
				t.Errorf("Classes = %q, want %q", a.Classes, tt.classes)
			}
			if !reflect.DeepEqual(a.Words, tt.words) {
				t.Errorf("Words = %q, want %q", a.Words, tt.words)
			}
			if !reflect.DeepEqual(a.Values, tt.values) {
				t.Errorf("Values = %v, want %v", a.Values, tt.values)
			}
		})
	}
}

func TestParseKeepsKeyOrder(t *testing.T) {
	a, err := Parse("{r, b=2, a=1, b=3}")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if want := []string{"b", "a"}; !reflect.DeepEqual(a.Keys, want) {
		t.Errorf("Keys = %q, want %q", a.Keys, want)
	}
	if v, _ := a.Get("b"); v != "3" {
		t.Errorf("Get(b) = %q, want last value 3", v)
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"", "{", "{=html}", "#id", "{#}"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Fatalf("Parse(%q) should fail", input)
			}
			var pe *qerrors.ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error %v is not a ParseError", err)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		input  string
		rest   string
		id     string
		wantOK bool
	}{
		{"Trends {#sec-trends}", "Trends", "sec-trends", true},
		{"Appendix {.unnumbered}", "Appendix", "", true},
		{"No attributes", "No attributes", "", false},
		{"Sets {a, b}", "Sets", "", true},
		{"Broken {=x}", "Broken {=x}", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			rest, a, ok := Split(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Split(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if rest != tt.rest {
				t.Errorf("rest = %q, want %q", rest, tt.rest)
			}
			if ok && a.ID != tt.id {
				t.Errorf("ID = %q, want %q", a.ID, tt.id)
			}
		})
	}
}

func TestLeading(t *testing.T) {
	a, rest, ok := Leading(` {.callout-note title="Heads up"} trailing`)
	if !ok {
		t.Fatal("Leading should parse the block")
	}
	if !a.HasClass("callout-note") {
		t.Errorf("Classes = %q, want callout-note", a.Classes)
	}
	if title, _ := a.Get("title"); title != "Heads up" {
		t.Errorf("title = %q", title)
	}
	if rest != "trailing" {
		t.Errorf("rest = %q, want trailing", rest)
	}

	if _, _, ok := Leading("callout-note"); ok {
		t.Error("Leading should not accept a bare word")
	}
	if _, _, ok := Leading("{unterminated"); ok {
		t.Error("Leading should not accept an unterminated block")
	}
}

func TestLanguage(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"{r}", "r"},
		{"{python, echo=FALSE}", "python"},
		{"{.sql}", "sql"},
		{"{echo=FALSE}", ""},
		{"{#lst-a .bash}", "bash"},
	}
	for _, tt := range tests {
		a, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.input, err)
		}
		if got := a.Language(); got != tt.want {
			t.Errorf("Language(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

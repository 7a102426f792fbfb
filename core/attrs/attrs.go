// Package attrs parses Pandoc / Quarto attribute blocks such as
// {#sec-trends}, {.callout-note title="Remember"} and {r, echo=FALSE}.
package attrs

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/qmdptx/core/errors"
)

// Attributes is the parsed content of one brace block.
type Attributes struct {
	// ID is the #identifier, if any.
	ID string

	// Classes holds .class entries in source order.
	Classes []string

	// Words holds bare words without a value (the language of an
	// executable chunk header such as {r}).
	Words []string

	// Keys lists key=value keys in source order; Values maps them.
	Keys   []string
	Values map[string]string
}

// blockGrammar is the participle grammar for a brace attribute block.
// Examples: "{#sec-x}", "{.callout-note}", "{r echo=FALSE}", "{r, fig.width=6}"
//
//nolint:govet // participle grammar tags are not standard struct tags
type blockGrammar struct {
	Items []*itemGrammar `parser:"\"{\" ( @@ \",\"? )* \"}\""`
}

//nolint:govet // participle grammar tags are not standard struct tags
type itemGrammar struct {
	ID    *string      `parser:"  \"#\" @Word"`
	Class *string      `parser:"| \".\" @Word"`
	Pair  *pairGrammar `parser:"| @@"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type pairGrammar struct {
	Key   string  `parser:"@Word"`
	Value *string `parser:"( \"=\" ( @String | @Word ) )?"`
}

// blockLexer defines the tokens of an attribute block. A Word may contain
// dots after its first character so that keys like fig.width survive.
var blockLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Word", Pattern: `[^\s{}=#.,"][^\s{}=,"]*`},
	{Name: "Punct", Pattern: `[{}=#.,]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var blockParser = participle.MustBuild[blockGrammar](
	participle.Lexer(blockLexer),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
)

// Parse parses a complete brace block, braces included.
func Parse(block string) (*Attributes, error) {
	block = strings.TrimSpace(block)
	if block == "" {
		return nil, errors.NewParse("attributes", "", "empty attribute block")
	}

	parsed, err := blockParser.ParseString("", block)
	if err != nil {
		return nil, &errors.ParseError{
			Format:  "attributes",
			Message: err.Error(),
			Err:     err,
		}
	}

	a := &Attributes{Values: map[string]string{}}
	for _, item := range parsed.Items {
		switch {
		case item.ID != nil:
			if a.ID == "" {
				a.ID = *item.ID
			}
		case item.Class != nil:
			a.Classes = append(a.Classes, *item.Class)
		case item.Pair != nil && item.Pair.Value != nil:
			if _, seen := a.Values[item.Pair.Key]; !seen {
				a.Keys = append(a.Keys, item.Pair.Key)
			}
			a.Values[item.Pair.Key] = *item.Pair.Value
		case item.Pair != nil:
			a.Words = append(a.Words, item.Pair.Key)
		}
	}
	return a, nil
}

// Leading parses the brace block at the start of text and returns it along
// with whatever follows the closing brace.
func Leading(text string) (*Attributes, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return nil, text, false
	}
	end := strings.Index(text, "}")
	if end < 0 {
		return nil, text, false
	}
	a, err := Parse(text[:end+1])
	if err != nil {
		return nil, text, false
	}
	return a, strings.TrimSpace(text[end+1:]), true
}

// Split separates a trailing brace block from text, as written after a
// heading title. ok is false when there is no block or it does not parse.
func Split(text string) (rest string, a *Attributes, ok bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasSuffix(trimmed, "}") {
		return text, nil, false
	}
	start := strings.LastIndex(trimmed, "{")
	if start < 0 {
		return text, nil, false
	}
	a, err := Parse(trimmed[start:])
	if err != nil {
		return text, nil, false
	}
	return strings.TrimSpace(trimmed[:start]), a, true
}

// HasClass reports whether name is one of the classes.
func (a *Attributes) HasClass(name string) bool {
	for _, c := range a.Classes {
		if c == name {
			return true
		}
	}
	return false
}

// Get returns the value of key.
func (a *Attributes) Get(key string) (string, bool) {
	v, ok := a.Values[key]
	return v, ok
}

// Language returns the language declared by a code chunk header: the first
// bare word ({r}, {python echo=FALSE}) or else the first class ({.sql}).
func (a *Attributes) Language() string {
	if len(a.Words) > 0 {
		return a.Words[0]
	}
	if len(a.Classes) > 0 {
		return a.Classes[0]
	}
	return ""
}

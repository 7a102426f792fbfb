// Package inline converts the inline syntax of Quarto markdown (emphasis,
// links, code spans, math, cross-references) into PreText fragments.
//
// The conversion is a fixed sequence of rewrites over the whole string. Later
// rewrites see the output of earlier ones, so the order below is significant:
// links and cross-references must exist before escaping, and escaping must
// skip the tags they produced.
package inline

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FocuswithJustin/qmdptx/core/encoding"
)

var (
	inlineFootnotePattern = regexp.MustCompile(`\^\[[^\]]+\]`)
	footnoteRefPattern    = regexp.MustCompile(`\[\^[^\]]+\]`)
	crossRefPattern       = regexp.MustCompile(`@(sec|ch|fig|tbl)-([a-z0-9\-]+)`)
	linkPattern           = regexp.MustCompile(`\[([^\]]+)\]\(([^\)]+)\)`)
	inlineRPattern        = regexp.MustCompile("`r\\s+([^`]+)`")
	codePattern           = regexp.MustCompile("`([^`]+)`")
	strongPattern         = regexp.MustCompile(`\*\*([^\*]+)\*\*`)
	mathPattern           = regexp.MustCompile(`\$([^\$]+)\$`)

	// taggedPattern matches exactly the fragments produced by the link,
	// cross-reference and inline-R rewrites.
	taggedPattern = regexp.MustCompile(`<url href="[^"]+">.*?</url>|<xref ref="[^"]+"/>|<c>.*?</c>`)
)

// dollarPlaceholder stands in for an escaped dollar sign while inline math is
// scanned. It cannot occur in text read from a document.
const dollarPlaceholder = "\x00DOLLAR\x00"

// stage is one rewrite of the pipeline.
type stage struct {
	name string
	fn   func(string) string
}

var pipeline = []stage{
	{"footnotes", stripFootnotes},
	{"cross-references", crossReferences},
	{"links", links},
	{"inline-r", inlineR},
	{"escape", escapePlain},
	{"code", code},
	{"strong", strong},
	{"emphasis", emphasis},
	{"math", math},
}

// Transform converts one line or one joined paragraph of Quarto markdown to
// PreText inline markup. It never fails: malformed constructs are passed
// through, partially converted at worst.
func Transform(text string) string {
	for _, s := range pipeline {
		text = s.fn(text)
	}
	return text
}

// Footnote bodies and reference markers are dropped, not rendered.
func stripFootnotes(text string) string {
	text = inlineFootnotePattern.ReplaceAllString(text, "")
	return footnoteRefPattern.ReplaceAllString(text, "")
}

func crossReferences(text string) string {
	return crossRefPattern.ReplaceAllString(text, `<xref ref="${1}-${2}"/>`)
}

func links(text string) string {
	return replaceSubmatches(linkPattern, text, func(m []string) string {
		return `<url href="` + m[2] + `">` + encoding.EscapeXMLText(m[1]) + `</url>`
	})
}

// Inline R chunks are quoted, never evaluated.
func inlineR(text string) string {
	return inlineRPattern.ReplaceAllString(text, "<c>${1}</c>")
}

// escapePlain escapes everything outside the tags produced so far.
func escapePlain(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range taggedPattern.FindAllStringIndex(text, -1) {
		b.WriteString(encoding.EscapeXMLText(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(encoding.EscapeXMLText(text[last:]))
	return b.String()
}

func code(text string) string {
	return codePattern.ReplaceAllString(text, "<c>${1}</c>")
}

func strong(text string) string {
	return strongPattern.ReplaceAllString(text, "<alert>${1}</alert>")
}

func emphasis(text string) string {
	text = emphasize(text, '*')
	return emphasize(text, '_')
}

func math(text string) string {
	text = strings.ReplaceAll(text, `\$`, dollarPlaceholder)
	text = mathPattern.ReplaceAllString(text, "<m>${1}</m>")
	return strings.ReplaceAll(text, dollarPlaceholder, "$")
}

// emphasize wraps delim-delimited spans in <em>. The opening delimiter must
// not follow a word character or '<', the closing one must not precede a
// word character or '>', and the span may not contain delim or '<'. Scanning
// restarts one byte later after a failed attempt and after the span on
// success.
func emphasize(text string, delim byte) string {
	var b strings.Builder
	i, last := 0, 0
	for i < len(text) {
		if text[i] != delim || !openBoundary(text, i) {
			i++
			continue
		}
		j := i + 1
		for j < len(text) && text[j] != delim && text[j] != '<' {
			j++
		}
		if j == i+1 || j >= len(text) || text[j] != delim || !closeBoundary(text, j+1) {
			i++
			continue
		}
		b.WriteString(text[last:i])
		b.WriteString("<em>")
		b.WriteString(text[i+1 : j])
		b.WriteString("</em>")
		i = j + 1
		last = i
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func openBoundary(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return r != '<' && !isWordRune(r)
}

func closeBoundary(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return r != '>' && !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// replaceSubmatches is ReplaceAllStringFunc with access to capture groups.
func replaceSubmatches(re *regexp.Regexp, text string, fn func([]string) string) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range matches {
		groups := make([]string, len(loc)/2)
		for g := range groups {
			if loc[2*g] >= 0 {
				groups[g] = text[loc[2*g]:loc[2*g+1]]
			}
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// Package pretext turns Quarto markdown chapters into PreText XML.
//
// Conversion is line oriented. Each line is classified by the first rule
// that accepts it, in a fixed priority order, and block constructs that
// span several lines (code blocks, callouts, display math) consume their
// whole body through a shared cursor. Text content is handed to the inline
// package, which produces escaped XML.
package pretext

import (
	"regexp"
	"strings"

	"github.com/FocuswithJustin/qmdptx/core/encoding"
	"github.com/FocuswithJustin/qmdptx/core/inline"
)

// Document is one chapter handed to the converter.
type Document struct {
	ID    string
	Title string
	Text  string
}

// Options control the layout dependent parts of the conversion.
type Options struct {
	// ImagePrefix marks image paths that are relative to ImageDir.
	// Empty disables the rewrite.
	ImagePrefix string
	ImageDir    string

	// DefaultLanguage is used for code blocks that do not name one.
	DefaultLanguage string

	// WrapChapter wraps the output in a <chapter> element carrying the
	// document id and title.
	WrapChapter bool
}

// DefaultOptions returns the options used by Convert.
func DefaultOptions() Options {
	return Options{
		ImagePrefix:     "img/",
		ImageDir:        "dataviz/",
		DefaultLanguage: "r",
	}
}

// Convert converts the text of a chapter into the body of a PreText
// chapter: sections, subsections and their content, without the enclosing
// <chapter> element. id and title describe the chapter; the title line of
// the source, when present, is skipped.
func Convert(text, id, title string) string {
	return ConvertDocument(Document{ID: id, Title: title, Text: text}, DefaultOptions())
}

// ConvertDocument converts doc using opts.
func ConvertDocument(doc Document, opts Options) string {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = DefaultOptions().DefaultLanguage
	}

	c := &converter{
		opts: opts,
		in:   newCursor(strings.Split(doc.Text, "\n")),
		out:  &writer{},
	}
	c.run()
	body := c.out.String()

	if !opts.WrapChapter {
		return body
	}
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", chapterIndent) + `<chapter xml:id="` + encoding.EscapeXMLAttr(doc.ID) + `">` + "\n")
	b.WriteString(strings.Repeat(" ", sectionIndent) + "<title>" + inline.Transform(doc.Title) + "</title>\n\n")
	b.WriteString(body)
	b.WriteString("\n" + strings.Repeat(" ", chapterIndent) + "</chapter>\n")
	return b.String()
}

var (
	escapedItemPattern  = regexp.MustCompile(`^(\d+)\\\.\s+(.*)$`)
	orderedItemPattern  = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)
	footnoteDefPattern  = regexp.MustCompile(`^\[\^[^\]]+\]:`)
	listLikeLinePattern = regexp.MustCompile(`^[\d\*\-]`)
)

type converter struct {
	opts Options
	in   *cursor
	out  *writer

	nest nesting
	mode mode
	para []string
}

func (c *converter) run() {
	for !c.in.done() {
		c.step()
	}
	c.finish()
}

// step consumes the next line, and any lines belonging to the same block,
// dispatching on the first rule that matches.
func (c *converter) step() {
	first := c.in.index() == 0
	line, _ := c.in.next()
	trimmed := strings.TrimSpace(line)

	if first && strings.HasPrefix(line, "# ") {
		return
	}
	if isCodeFence(line) {
		c.codeBlock(trimmed)
		return
	}
	if strings.HasPrefix(line, "## ") {
		c.section(line[3:])
		return
	}
	if strings.HasPrefix(line, "### ") {
		c.subsection(line[4:])
		return
	}
	if strings.HasPrefix(trimmed, "![") {
		c.image(trimmed)
		return
	}
	if isDivFence(line) {
		c.fence(trimmed)
		return
	}
	if m := escapedItemPattern.FindStringSubmatch(line); m != nil {
		c.listItem(m[2])
		return
	}
	if m := orderedItemPattern.FindStringSubmatch(line); m != nil {
		c.listItem(m[2])
		return
	}
	if strings.HasPrefix(trimmed, ">") {
		c.blockquote(trimmed)
		return
	}
	if footnoteDefPattern.MatchString(line) {
		c.flushParagraph()
		return
	}
	if trimmed == "" {
		c.flushParagraph()
		return
	}
	if strings.HasPrefix(trimmed, "$$") {
		c.displayMath(trimmed)
		return
	}
	if strings.HasPrefix(line, "#") {
		return
	}
	c.text(line, trimmed)
}

// finish closes everything still open at the end of input, innermost first.
func (c *converter) finish() {
	c.flushParagraph()
	c.closeList()
	c.closeSubsection()
	if c.nest.section {
		c.out.line(sectionIndent, "</section>")
		c.nest.section = false
	}
}

// indent is the indentation of block content at the current nesting.
func (c *converter) indent() int {
	if c.nest.subsection {
		return contentIndent + indentStep
	}
	return contentIndent
}

func (c *converter) flushParagraph() {
	if c.mode != modeParagraph {
		return
	}
	c.out.line(c.indent(), "<p>"+inline.Transform(strings.Join(c.para, " "))+"</p>")
	c.out.blank()
	c.para = c.para[:0]
	c.mode = modeIdle
}

func (c *converter) closeList() {
	if c.mode != modeList {
		return
	}
	c.out.line(c.indent(), "</ol>")
	c.out.blank()
	c.mode = modeIdle
}

func (c *converter) closeSubsection() {
	if !c.nest.subsection {
		return
	}
	c.out.line(contentIndent, "</subsection>")
	c.out.blank()
	c.nest.subsection = false
}

func isCodeFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

func isDivFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), ":::")
}

// isMathFence reports whether line closes a multi-line math block. Any
// line starting with $$ closes it, so labelled closers like "$$ {#eq-a}"
// work; only a bare $$ opens one.
func isMathFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "$$")
}

package pretext

import (
	"regexp"
	"strings"

	"github.com/FocuswithJustin/qmdptx/core/attrs"
	"github.com/FocuswithJustin/qmdptx/core/encoding"
	"github.com/FocuswithJustin/qmdptx/core/inline"
)

var (
	chunkLanguagePattern = regexp.MustCompile(`^\{(\w+)`)
	bareLanguagePattern  = regexp.MustCompile(`^(\w+)`)
	imagePattern         = regexp.MustCompile(`^!\[([^\]]*)\]\(([^\)]+)\)(?:\{[^\}]+\})?`)
	quoteMarkerPattern   = regexp.MustCompile(`^>\s*`)
)

// codeBlock emits a fenced block verbatim inside <program>. The list, if
// any, stays open. An unterminated block produces nothing.
func (c *converter) codeBlock(open string) {
	c.flushParagraph()
	lang := fenceLanguage(open, c.opts.DefaultLanguage)

	body, closed := c.in.takeUntil(isCodeFence)
	if !closed || len(body) == 0 {
		return
	}

	ind := c.indent()
	c.out.line(ind, `<program language="`+encoding.EscapeXMLAttr(lang)+`">`)
	c.out.line(ind+indentStep, "<input>")
	for _, line := range encoding.EscapeXMLLines(body) {
		c.out.raw(line)
	}
	c.out.line(ind+indentStep, "</input>")
	c.out.line(ind, "</program>")
	c.out.blank()
}

// fenceLanguage reads the language from the info string of an opening fence:
// "```python", "```{python}" or "```{r echo=FALSE}".
func fenceLanguage(open, fallback string) string {
	info := strings.TrimPrefix(open, "```")
	if strings.HasPrefix(info, "{") {
		if a, _, ok := attrs.Leading(info); ok {
			if lang := a.Language(); lang != "" {
				return lang
			}
			return fallback
		}
		if m := chunkLanguagePattern.FindStringSubmatch(info); m != nil {
			return m[1]
		}
		return fallback
	}
	if m := bareLanguagePattern.FindStringSubmatch(info); m != nil {
		return m[1]
	}
	return fallback
}

func (c *converter) section(heading string) {
	c.flushParagraph()
	c.closeList()
	c.closeSubsection()
	if c.nest.section {
		c.out.line(sectionIndent, "</section>")
		c.out.blank()
	}

	title, id := headingParts(heading, "sec-")
	c.out.line(sectionIndent, `<section xml:id="`+encoding.EscapeXMLAttr(id)+`">`)
	c.out.line(sectionIndent+indentStep, "<title>"+inline.Transform(title)+"</title>")
	c.out.blank()
	c.nest.section = true
}

func (c *converter) subsection(heading string) {
	c.flushParagraph()
	c.closeList()
	c.closeSubsection()

	title, id := headingParts(heading, "subsec-")
	c.out.line(contentIndent, `<subsection xml:id="`+encoding.EscapeXMLAttr(id)+`">`)
	c.out.line(contentIndent+indentStep, "<title>"+inline.Transform(title)+"</title>")
	c.out.blank()
	c.nest.subsection = true
}

// image emits a <figure>. Lines that start like an image but do not parse
// as one are dropped.
func (c *converter) image(trimmed string) {
	c.flushParagraph()
	m := imagePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return
	}
	src := m[2]
	if c.opts.ImagePrefix != "" && strings.HasPrefix(src, c.opts.ImagePrefix) {
		src = c.opts.ImageDir + src
	}

	ind := c.indent()
	c.out.line(ind, "<figure>")
	c.out.line(ind+indentStep, `<image source="`+encoding.EscapeXMLAttr(src)+`"/>`)
	c.out.line(ind, "</figure>")
	c.out.blank()
}

// fence handles a ::: line. Note callouts are converted with their body;
// any other div fence is a layout wrapper and only ends the current block.
func (c *converter) fence(trimmed string) {
	c.flushParagraph()
	c.closeList()
	if strings.Contains(trimmed, "callout-note") {
		c.note(trimmed)
	}
}

func (c *converter) note(open string) {
	ind := c.indent()
	c.out.line(ind, "<note>")
	if title := calloutTitle(open); title != "" {
		c.out.line(ind+indentStep, "<title>"+inline.Transform(title)+"</title>")
	}

	body, _ := c.in.takeUntil(isDivFence)
	in := newCursor(body)
	for !in.done() {
		line, _ := in.next()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "$$":
			lines, _ := in.takeUntil(isMathFence)
			if len(lines) > 0 {
				c.out.line(ind+indentStep, "<me>")
				for _, l := range lines {
					c.out.raw(l)
				}
				c.out.line(ind+indentStep, "</me>")
			}
		case trimmed != "":
			c.out.line(ind+indentStep, "<p>"+inline.Transform(trimmed)+"</p>")
		}
	}

	c.out.line(ind, "</note>")
	c.out.blank()
}

func calloutTitle(open string) string {
	info := strings.TrimSpace(strings.TrimLeft(open, ":"))
	a, _, ok := attrs.Leading(info)
	if !ok {
		return ""
	}
	title, _ := a.Get("title")
	return title
}

func (c *converter) listItem(text string) {
	c.flushParagraph()
	if c.mode != modeList {
		c.out.line(c.indent(), "<ol>")
		c.mode = modeList
	}
	c.out.line(c.indent()+indentStep, "<li><p>"+inline.Transform(text)+"</p></li>")
}

// blockquote emits a single-line quote. Up to three levels of > markers
// are flattened into one <blockquote>.
func (c *converter) blockquote(trimmed string) {
	c.flushParagraph()
	c.closeList()
	text := trimmed
	for i := 0; i < 3; i++ {
		text = quoteMarkerPattern.ReplaceAllString(text, "")
	}
	if text == "" {
		return
	}

	ind := c.indent()
	c.out.line(ind, "<blockquote>")
	c.out.line(ind+indentStep, "<p>"+inline.Transform(text)+"</p>")
	c.out.line(ind, "</blockquote>")
	c.out.blank()
}

// displayMath handles both "$$ ... $$" on one line and a bare "$$" opening
// a multi-line block. Math content is passed through unescaped.
func (c *converter) displayMath(trimmed string) {
	c.flushParagraph()
	c.closeList()

	var lines []string
	if trimmed == "$$" {
		lines, _ = c.in.takeUntil(isMathFence)
	} else if content := singleLineMath(trimmed); content != "" {
		lines = []string{content}
	}
	if len(lines) == 0 {
		return
	}

	ind := c.indent()
	c.out.line(ind, "<me>")
	for _, l := range lines {
		c.out.raw(l)
	}
	c.out.line(ind, "</me>")
	c.out.blank()
}

func singleLineMath(trimmed string) string {
	body := trimmed[2:]
	if strings.HasSuffix(trimmed, "$$") {
		if len(trimmed) < 4 {
			return ""
		}
		body = trimmed[2 : len(trimmed)-2]
	}
	return strings.TrimSpace(body)
}

// text buffers a paragraph line. Inside an open list a line that looks like
// another list marker but did not parse as an item is dropped; anything
// else ends the list.
func (c *converter) text(line, trimmed string) {
	if c.mode == modeList {
		if listLikeLinePattern.MatchString(line) {
			return
		}
		c.closeList()
	}
	c.para = append(c.para, trimmed)
	c.mode = modeParagraph
}

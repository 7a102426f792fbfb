package pretext

// cursor walks the document one line at a time. Block handlers receive the
// cursor and consume as many lines as their construct spans.
type cursor struct {
	lines []string
	pos   int
}

func newCursor(lines []string) *cursor {
	return &cursor{lines: lines}
}

func (c *cursor) done() bool {
	return c.pos >= len(c.lines)
}

// index is the position of the line next() will return.
func (c *cursor) index() int {
	return c.pos
}

func (c *cursor) peek() (string, bool) {
	if c.done() {
		return "", false
	}
	return c.lines[c.pos], true
}

func (c *cursor) next() (string, bool) {
	line, ok := c.peek()
	if ok {
		c.pos++
	}
	return line, ok
}

// takeUntil consumes lines up to and including the first one accepted by
// stop, returning the lines before it. closed is false when the input ran
// out first.
func (c *cursor) takeUntil(stop func(string) bool) (taken []string, closed bool) {
	for {
		line, ok := c.next()
		if !ok {
			return taken, false
		}
		if stop(line) {
			return taken, true
		}
		taken = append(taken, line)
	}
}

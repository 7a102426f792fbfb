package pretext

import "strings"

// Fixed indentation of the emitted markup. Section elements sit at
// sectionIndent inside the enclosing chapter, their content one step deeper,
// and subsection content one more step.
const (
	chapterIndent = 6
	sectionIndent = 8
	contentIndent = 10
	indentStep    = 2
)

type writer struct {
	lines []string
}

func (w *writer) line(indent int, s string) {
	w.lines = append(w.lines, strings.Repeat(" ", indent)+s)
}

// raw appends s without indentation; verbatim code and math use it.
func (w *writer) raw(s string) {
	w.lines = append(w.lines, s)
}

func (w *writer) blank() {
	w.lines = append(w.lines, "")
}

func (w *writer) String() string {
	return strings.Join(w.lines, "\n")
}

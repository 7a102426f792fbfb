package pretext

// mode is the open block context that persists between lines. Code blocks,
// callouts and multi-line math are consumed in one go by their handlers and
// never show up here.
type mode int

const (
	modeIdle      mode = iota
	modeParagraph      // paragraph lines are buffered
	modeList           // an <ol> is open
)

// nesting records which heading elements are open. Only two levels exist;
// a subsection may be open without an enclosing section.
type nesting struct {
	section    bool
	subsection bool
}

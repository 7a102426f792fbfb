package pretext

import "testing"

func TestFenceLanguage(t *testing.T) {
	tests := []struct {
		open string
		want string
	}{
		{"```", "r"},
		{"```python", "python"},
		{"```{python}", "python"},
		{"```{r echo=FALSE}", "r"},
		{"```{r, fig.width=7}", "r"},
		{"```{.sql}", "sql"},
		{"```{.python}", "python"},
		{"```{echo=FALSE}", "r"},
		{"```{r label=\"a}b\"}", "r"},
		{"``` python", "r"},
	}

	for _, tt := range tests {
		t.Run(tt.open, func(t *testing.T) {
			if got := fenceLanguage(tt.open, "r"); got != tt.want {
				t.Errorf("fenceLanguage(%q) = %q, want %q", tt.open, got, tt.want)
			}
		})
	}
}

func TestSingleLineMath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$$ a+b $$", "a+b"},
		{"$$a+b", "a+b"},
		{"$$$", ""},
		{"$$$$", ""},
		{"$$ x $$ tail", "x $$ tail"},
	}

	for _, tt := range tests {
		if got := singleLineMath(tt.in); got != tt.want {
			t.Errorf("singleLineMath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCalloutTitle(t *testing.T) {
	tests := []struct {
		open string
		want string
	}{
		{"::: {.callout-note}", ""},
		{`::: {.callout-note title="Heads up"}`, "Heads up"},
		{`:::: {.callout-note title="A \"quoted\" title"}`, `A "quoted" title`},
		{":::callout-note", ""},
	}

	for _, tt := range tests {
		if got := calloutTitle(tt.open); got != tt.want {
			t.Errorf("calloutTitle(%q) = %q, want %q", tt.open, got, tt.want)
		}
	}
}

func TestCursorTakeUntil(t *testing.T) {
	c := newCursor([]string{"a", "b", "$$", "c"})
	got, closed := c.takeUntil(isMathFence)
	if !closed || len(got) != 2 {
		t.Fatalf("takeUntil = %v, %v", got, closed)
	}
	if line, _ := c.peek(); line != "c" {
		t.Errorf("cursor should sit after the terminator, peek = %q", line)
	}

	rest, closed := c.takeUntil(isMathFence)
	if closed || len(rest) != 1 || !c.done() {
		t.Errorf("unterminated takeUntil = %v, %v, done=%v", rest, closed, c.done())
	}
	if _, ok := c.next(); ok {
		t.Error("next() past the end should report false")
	}
}

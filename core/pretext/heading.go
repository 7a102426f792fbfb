package pretext

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/FocuswithJustin/qmdptx/core/attrs"
)

var (
	explicitIDPattern = regexp.MustCompile(`\{#([^\}]+)\}`)
	explicitIDSuffix  = regexp.MustCompile(` \{#[^\}]+\}`)
	nonSlugPattern    = regexp.MustCompile(`[^a-z0-9]+`)
)

// headingParts splits heading text into its title and element id. An
// explicit {#id} wins; otherwise the id is prefix followed by the slug of
// the title. A trailing brace block is removed from the title only when it
// carries an id or a class; "Sets {a, b}" keeps its braces.
func headingParts(heading, prefix string) (title, id string) {
	heading = strings.TrimSpace(heading)
	if rest, a, ok := attrs.Split(heading); ok {
		title, id = heading, ""
		if a.ID != "" || len(a.Classes) > 0 {
			title, id = rest, a.ID
		}
	} else {
		title = explicitIDSuffix.ReplaceAllString(heading, "")
		if m := explicitIDPattern.FindStringSubmatch(heading); m != nil {
			id = m[1]
		}
	}
	if id == "" {
		id = prefix + Slug(title)
	}
	return title, id
}

// Slug lowercases s and collapses every run of characters outside [a-z0-9]
// into a single hyphen, trimming hyphens at either end.
func Slug(s string) string {
	lower := cases.Lower(language.Und).String(s)
	return strings.Trim(nonSlugPattern.ReplaceAllString(lower, "-"), "-")
}

// Package encoding provides the escaping rules used when emitting PreText markup.
package encoding

import "strings"

// EscapeXMLText escapes the three characters that are special in XML
// character data: & < >. Quotes are left untouched, matching what PreText
// authors expect to see in paragraph text and verbatim code.
func EscapeXMLText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// EscapeXMLAttr escapes text for use in double-quoted XML attributes.
func EscapeXMLAttr(s string) string {
	s = EscapeXMLText(s)
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// EscapeXMLLines escapes every line independently. Line boundaries are kept,
// which is what verbatim <input> blocks need.
func EscapeXMLLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = EscapeXMLText(line)
	}
	return out
}

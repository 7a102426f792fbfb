// Package xml checks generated PreText markup and queries it with XPath.
//
// Security Notes:
//   - Validation runs Go's xml.Decoder with an empty entity map, so no
//     entity, internal or external, is ever expanded.
//   - Parsing goes through xmlquery, which uses encoding/xml underneath and
//     inherits the same behavior.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// fragmentRoot wraps converter output, which has no single root element.
const fragmentRoot = "pretext-fragment"

// Document represents a parsed XML document.
type Document struct {
	root *xmlquery.Node
}

// Node represents an element of a parsed document.
type Node struct {
	node *xmlquery.Node
}

// ValidationResult contains the result of a well-formedness check.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError is a single problem found while checking.
type ValidationError struct {
	Line    int
	Column  int
	Message string
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseFragment parses converter output by wrapping it in a synthetic root
// element. Root() returns that wrapper.
func ParseFragment(fragment string) (*Document, error) {
	return Parse([]byte(wrapFragment(fragment)))
}

// Validate checks that data is well-formed XML. The position of the first
// error is reported relative to data.
func Validate(data []byte) ValidationResult {
	return validate(data, 0)
}

// CheckFragment checks that converter output is well-formed once wrapped
// in a single root element. Line numbers refer to the fragment.
func CheckFragment(fragment string) ValidationResult {
	return validate([]byte(wrapFragment(fragment)), 1)
}

func wrapFragment(fragment string) string {
	return "<" + fragmentRoot + ">\n" + fragment + "\n</" + fragmentRoot + ">"
}

func validate(data []byte, lineOffset int) ValidationResult {
	result := ValidationResult{Valid: true}

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = map[string]string{}

	fail := func(msg string) {
		line, col := decoder.InputPos()
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Line:    max(line-lineOffset, 1),
			Column:  col,
			Message: msg,
		})
	}

	depth, roots := 0, 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			fail(err.Error())
			return result
		}
		switch tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					fail("more than one root element")
					return result
				}
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	if roots == 0 {
		fail("no root element")
	}

	return result
}

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	if d.root == nil {
		return nil
	}
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return &Node{node: child}
		}
	}
	return nil
}

// XPath executes an XPath query and returns matching nodes.
func (d *Document) XPath(expr string) ([]*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}

	result := make([]*Node, len(nodes))
	for i, n := range nodes {
		result[i] = &Node{node: n}
	}
	return result, nil
}

// XPathFirst executes an XPath query and returns the first matching node,
// or nil when nothing matches.
func (d *Document) XPathFirst(expr string) (*Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}

	node, err := xmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	if node == nil {
		return nil, nil
	}
	return &Node{node: node}, nil
}

// Name returns the element name.
func (n *Node) Name() string {
	if n.node == nil {
		return ""
	}
	return n.node.Data
}

// Text returns the text content of the node and its descendants.
func (n *Node) Text() string {
	if n.node == nil {
		return ""
	}
	return n.node.InnerText()
}

// InnerXML returns the inner XML of the node.
func (n *Node) InnerXML() string {
	if n.node == nil {
		return ""
	}
	var buf bytes.Buffer
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		buf.WriteString(child.OutputXML(true))
	}
	return buf.String()
}

// Children returns the child element nodes.
func (n *Node) Children() []*Node {
	if n.node == nil {
		return nil
	}
	var children []*Node
	for child := n.node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, &Node{node: child})
		}
	}
	return children
}

// Attr returns the value of an attribute. Prefixed names such as "xml:id"
// match on the local part when the prefix was resolved to a namespace URI.
func (n *Node) Attr(name string) string {
	if n.node == nil {
		return ""
	}
	if v := n.node.SelectAttr(name); v != "" {
		return v
	}
	prefix, local, ok := strings.Cut(name, ":")
	if !ok {
		return ""
	}
	for _, attr := range n.node.Attr {
		if attr.Name.Local == local && (attr.Name.Space == prefix || strings.Contains(attr.Name.Space, "/")) {
			return attr.Value
		}
	}
	return ""
}

// ID returns the xml:id of the element.
func (n *Node) ID() string {
	return n.Attr("xml:id")
}

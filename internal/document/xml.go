package document

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Element implements Node for XML input.
type Element struct {
	tag      string
	attrs    []xml.Attr
	children []*Element
	text     strings.Builder
}

var _ Node = (*Element)(nil)

// Tag returns the local element name.
func (e *Element) Tag() string {
	return e.tag
}

// Child returns the first child with the given tag, or nil.
func (e *Element) Child(tag string) Node {
	for _, c := range e.children {
		if c.tag == tag {
			return c
		}
	}
	return nil
}

// Children returns every child with the given tag.
func (e *Element) Children(tag string) []Node {
	var out []Node
	for _, c := range e.children {
		if c.tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// All returns every child element.
func (e *Element) All() []Node {
	out := make([]Node, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, c)
	}
	return out
}

// Text returns the trimmed character data directly under the element.
func (e *Element) Text() string {
	return strings.TrimSpace(e.text.String())
}

// Attr returns the named attribute value, or "" when absent.
func (e *Element) Attr(name string) string {
	for _, a := range e.attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// AttrNames lists attribute names in document order.
func (e *Element) AttrNames() []string {
	names := make([]string, 0, len(e.attrs))
	for _, a := range e.attrs {
		names = append(names, a.Name.Local)
	}
	return names
}

// Parse reads an XML document and returns its root element.
func Parse(r io.Reader) (*Element, error) {
	decoder := xml.NewDecoder(r)

	var (
		root  *Element
		stack []*Element
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			el := &Element{tag: t.Name.Local}
			if len(t.Attr) > 0 {
				el.attrs = append(el.attrs, t.Attr...)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced end element %s", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unterminated element %s", stack[len(stack)-1].tag)
	}

	return root, nil
}

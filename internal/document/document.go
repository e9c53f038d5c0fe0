// Package document exposes parsed record files through one narrow
// tree-node abstraction so mappers never depend on the input format.
package document

import "strings"

// Node is the read-only view of one element in a parsed document tree.
type Node interface {
	// Tag returns the element name.
	Tag() string
	// Child returns the first child with the given tag, or nil.
	Child(tag string) Node
	// Children returns every child with the given tag, in document order.
	Children(tag string) []Node
	// All returns every child element, in document order.
	All() []Node
	// Text returns the trimmed character data directly under the element.
	Text() string
	// Attr returns the named attribute value, or "" when absent.
	Attr(name string) string
	// AttrNames lists the element's attribute names, in document order.
	AttrNames() []string
}

// AtPath descends through a dot-joined tag path, first match per segment.
// Returns nil when any segment is missing.
func AtPath(n Node, path string) Node {
	if n == nil || path == "" {
		return nil
	}
	for _, seg := range strings.Split(path, ".") {
		n = n.Child(seg)
		if n == nil {
			return nil
		}
	}
	return n
}

// TextAt returns the text at a dot-joined path, or "" when absent.
func TextAt(n Node, path string) string {
	found := AtPath(n, path)
	if found == nil {
		return ""
	}
	return found.Text()
}

// Package content models rendered flashcard content as a small mutable tree.
// Renderers (HTML today) adapt into it so that indexing, range resolution and
// highlighting stay independent of any particular document technology.
package content

import (
	"strings"
)

// Kind identifies the type of a Node.
type Kind int

const (
	// DocumentNode is the root of a tree.
	DocumentNode Kind = iota
	// ElementNode is a tagged container or marker element.
	ElementNode
	// TextNode is a text-bearing leaf.
	TextNode
)

// Attr is a single element attribute.
type Attr struct {
	Key string
	Val string
}

// Node is one node of a content tree.
type Node struct {
	Kind  Kind
	Tag   string // lower-case element name, empty for text and document nodes
	Attrs []Attr
	Text  string // text of a TextNode

	Parent, FirstChild, LastChild, PrevSibling, NextSibling *Node
}

// NewDocument returns an empty root node.
func NewDocument() *Node {
	return &Node{Kind: DocumentNode}
}

// NewElement returns a detached element node.
func NewElement(tag string, attrs ...Attr) *Node {
	return &Node{Kind: ElementNode, Tag: strings.ToLower(tag), Attrs: attrs}
}

// NewText returns a detached text node.
func NewText(text string) *Node {
	return &Node{Kind: TextNode, Text: text}
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute.
func (n *Node) SetAttr(key, val string) {
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs[i].Val = val
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Val: val})
}

// HasClass reports whether the class attribute contains class.
func (n *Node) HasClass(class string) bool {
	v, ok := n.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// AppendChild adds c as the last child of n. c must be detached.
func (n *Node) AppendChild(c *Node) {
	if c.Parent != nil || c.PrevSibling != nil || c.NextSibling != nil {
		panic("content: AppendChild called for an attached child Node")
	}
	last := n.LastChild
	if last != nil {
		last.NextSibling = c
	} else {
		n.FirstChild = c
	}
	n.LastChild = c
	c.Parent = n
	c.PrevSibling = last
}

// InsertBefore inserts c as a child of n, immediately before old.
// A nil old appends. c must be detached.
func (n *Node) InsertBefore(c, old *Node) {
	if c.Parent != nil || c.PrevSibling != nil || c.NextSibling != nil {
		panic("content: InsertBefore called for an attached child Node")
	}
	if old == nil {
		n.AppendChild(c)
		return
	}
	prev := old.PrevSibling
	if prev != nil {
		prev.NextSibling = c
	} else {
		n.FirstChild = c
	}
	old.PrevSibling = c
	c.Parent = n
	c.PrevSibling = prev
	c.NextSibling = old
}

// RemoveChild detaches c from n.
func (n *Node) RemoveChild(c *Node) {
	if c.Parent != n {
		panic("content: RemoveChild called for a non-child Node")
	}
	if n.FirstChild == c {
		n.FirstChild = c.NextSibling
	}
	if c.NextSibling != nil {
		c.NextSibling.PrevSibling = c.PrevSibling
	}
	if n.LastChild == c {
		n.LastChild = c.PrevSibling
	}
	if c.PrevSibling != nil {
		c.PrevSibling.NextSibling = c.NextSibling
	}
	c.Parent = nil
	c.PrevSibling = nil
	c.NextSibling = nil
}

// ReplaceWith puts the given detached nodes where n was and detaches n.
func (n *Node) ReplaceWith(nodes ...*Node) {
	parent := n.Parent
	if parent == nil {
		panic("content: ReplaceWith called for a detached Node")
	}
	next := n.NextSibling
	parent.RemoveChild(n)
	for _, c := range nodes {
		parent.InsertBefore(c, next)
	}
}

// Unwrap replaces an element with its children.
func (n *Node) Unwrap() {
	var children []*Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		children = append(children, c)
		c = next
	}
	n.ReplaceWith(children...)
}

// Children returns the direct children of n.
func (n *Node) Children() []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// Walk visits n and its descendants in document order. Returning false
// from fn skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// TextContent returns the concatenated text below n, leaving out elements
// that never render.
func TextContent(n *Node) string {
	var b strings.Builder
	Walk(n, func(c *Node) bool {
		switch c.Kind {
		case TextNode:
			b.WriteString(c.Text)
		case ElementNode:
			return !IsSkipped(c.Tag)
		}
		return true
	})
	return b.String()
}

// Normalize merges adjacent text siblings and drops empty text nodes below n.
func Normalize(n *Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Kind {
		case TextNode:
			if c.Text == "" {
				n.RemoveChild(c)
			} else {
				for next != nil && next.Kind == TextNode {
					c.Text += next.Text
					after := next.NextSibling
					n.RemoveChild(next)
					next = after
				}
			}
		default:
			Normalize(c)
		}
		c = next
	}
}

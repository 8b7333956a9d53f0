// Package htmltree adapts HTML fragments to and from content trees.
package htmltree

import (
	"bytes"
	"io"
	"strings"

	"github.com/jarrod-lowe/flashcard-anchor-service/internal/content"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse reads an HTML fragment as it would appear inside <body> and returns
// it as a content document. Comments and doctypes are dropped.
func Parse(r io.Reader) (*content.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, body)
	if err != nil {
		return nil, err
	}

	doc := content.NewDocument()
	for _, n := range nodes {
		if c := fromHTML(n); c != nil {
			doc.AppendChild(c)
		}
	}
	return doc, nil
}

// ParseString is Parse for an in-memory fragment.
func ParseString(s string) (*content.Node, error) {
	return Parse(strings.NewReader(s))
}

// Render writes the children of root as HTML.
func Render(w io.Writer, root *content.Node) error {
	if root.Kind != content.DocumentNode {
		return html.Render(w, toHTML(root))
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(w, toHTML(c)); err != nil {
			return err
		}
	}
	return nil
}

// RenderString renders root into a string.
func RenderString(root *content.Node) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func fromHTML(n *html.Node) *content.Node {
	var out *content.Node
	switch n.Type {
	case html.TextNode:
		return content.NewText(n.Data)
	case html.ElementNode:
		attrs := make([]content.Attr, 0, len(n.Attr))
		for _, a := range n.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			attrs = append(attrs, content.Attr{Key: key, Val: a.Val})
		}
		out = content.NewElement(n.Data, attrs...)
	case html.DocumentNode:
		out = content.NewDocument()
	default:
		return nil
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if child := fromHTML(c); child != nil {
			out.AppendChild(child)
		}
	}
	return out
}

func toHTML(n *content.Node) *html.Node {
	var out *html.Node
	switch n.Kind {
	case content.TextNode:
		return &html.Node{Type: html.TextNode, Data: n.Text}
	case content.DocumentNode:
		out = &html.Node{Type: html.DocumentNode}
	default:
		attrs := make([]html.Attribute, 0, len(n.Attrs))
		for _, a := range n.Attrs {
			attrs = append(attrs, html.Attribute{Key: a.Key, Val: a.Val})
		}
		out = &html.Node{
			Type:     html.ElementNode,
			Data:     n.Tag,
			DataAtom: atom.Lookup([]byte(n.Tag)),
			Attr:     attrs,
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out.AppendChild(toHTML(c))
	}
	return out
}

package content

// skippedElements never render text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
	"title":    true,
}

// blockElements start a new visual line.
var blockElements = map[string]bool{
	"p": true, "div": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "li": true, "ul": true, "ol": true,
	"blockquote": true, "pre": true, "table": true, "tr": true, "td": true,
	"th": true, "section": true, "article": true, "header": true,
	"footer": true, "nav": true, "main": true, "aside": true, "figure": true,
	"figcaption": true, "details": true, "summary": true, "dl": true,
	"dt": true, "dd": true, "hr": true,
}

// IsSkipped reports whether an element's subtree is excluded from text.
func IsSkipped(tag string) bool {
	return skippedElements[tag]
}

// IsBlock reports whether tag is a block-level container.
func IsBlock(tag string) bool {
	return blockElements[tag]
}

// IsLineBreak reports whether tag is an explicit line break.
func IsLineBreak(tag string) bool {
	return tag == "br"
}

// BlockAncestor returns the nearest block-level ancestor of n, or the root
// of its tree when there is none.
func BlockAncestor(n *Node) *Node {
	p := n.Parent
	if p == nil {
		return n
	}
	for p.Parent != nil {
		if p.Kind == ElementNode && IsBlock(p.Tag) {
			return p
		}
		p = p.Parent
	}
	return p
}

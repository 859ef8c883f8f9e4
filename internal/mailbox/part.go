package mailbox

import "strings"

// Part is a node in a message's MIME structure: either a Leaf or a Container.
type Part interface {
	isPart()
}

// Leaf is a single downloadable body part.
type Leaf struct {
	// ID is the section path used to download the part, e.g. "1" or "2.1".
	ID       string
	Type     string
	Subtype  string
	Encoding string
	Charset  string
}

// Container is a multipart node.
type Container struct {
	Subtype  string
	Children []Part
}

func (Leaf) isPart()      {}
func (Container) isPart() {}

// IsPlainText reports whether the leaf is text/plain.
func (l Leaf) IsPlainText() bool {
	return strings.EqualFold(l.Type, "text") && strings.EqualFold(l.Subtype, "plain")
}

// FindPlainText returns the first text/plain leaf in depth-first order.
func FindPlainText(p Part) (Leaf, bool) {
	switch node := p.(type) {
	case Leaf:
		if node.IsPlainText() {
			return node, true
		}
	case Container:
		for _, child := range node.Children {
			if leaf, ok := FindPlainText(child); ok {
				return leaf, true
			}
		}
	}
	return Leaf{}, false
}

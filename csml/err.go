package csml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

var (
	// ErrSyntax is matched by every *SyntaxError.
	ErrSyntax = errors.New("syntax error")

	// ErrUnknownFlag is returned when markup uses a flag that is not registered.
	ErrUnknownFlag = errors.New("unknown flag")

	// ErrInvalidName is returned for malformed tag, attribute, flag or transform names.
	ErrInvalidName = errors.New("invalid name")

	// ErrNameConflict is returned when a flag or transform name is already registered.
	ErrNameConflict = errors.New("name already registered")

	// ErrRange is returned when a numeric flag argument is out of bounds.
	ErrRange = errors.New("argument out of range")

	// ErrSkip is returned by a TransformFunc to leave the text unchanged.
	ErrSkip = errors.New("skip transform")
)

// SyntaxError reports malformed markup.
type SyntaxError struct {
	Msg  string
	Span Span

	// Line is the source line the error occurred on.
	Line string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.Line, e.Span.Column, e.Msg)
}

func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// Excerpt returns the offending line with a caret under the error column.
func (e *SyntaxError) Excerpt() string {
	if e.Span.Column < 1 {
		return e.Line
	}
	return e.Line + "\n" + strings.Repeat(" ", e.Span.Column-1) + "^"
}

// NodeError is an error tied to a node of the document tree.
type NodeError struct {
	Span Span
	err  error
	doc  *etree.Element
}

func newNodeError(n *Node, err error) *NodeError {
	return &NodeError{
		Span: n.Span,
		err:  err,
		doc:  buildErrorContext(n),
	}
}

// spanError ties an error to a markup line that has no node yet.
func spanError(span Span, err error) error {
	if _, ok := err.(*NodeError); ok {
		return err
	}
	return &NodeError{Span: span, err: err}
}

func (e *NodeError) Error() string {
	if e.Span.IsZero() {
		return e.err.Error()
	}
	return fmt.Sprintf("%d:%d: %s", e.Span.Line, e.Span.Column, e.err)
}

func (e *NodeError) Unwrap() error {
	return e.err
}

// HTMLContext renders the node with its neighbours and parent, eliding the
// rest of the document.
func (e *NodeError) HTMLContext() string {
	if e.doc == nil {
		return ""
	}
	return renderErrorContext(e.doc)
}

// errorContextBuilder is a type to organize helper functions for building error context trees.
type errorContextBuilder struct{}

const contextSiblings = 2

func (b errorContextBuilder) addPrevSiblings(doc *etree.Element, n *Node) {
	var nodes []*Node
	for c := n.PrevSibling; c != nil; c = c.PrevSibling {
		if c.isWhitespace() {
			continue
		}
		if len(nodes) == contextSiblings {
			doc.AddChild(etree.NewText("..."))
			break
		}
		nodes = append(nodes, c)
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		b.addNode(doc, nodes[i])
	}
}

func (b errorContextBuilder) addNextSiblings(doc *etree.Element, n *Node) {
	count := 0
	for c := n.NextSibling; c != nil; c = c.NextSibling {
		if c.isWhitespace() {
			continue
		}
		if count == contextSiblings {
			doc.AddChild(etree.NewText("..."))
			break
		}
		b.addNode(doc, c)
		count++
	}
}

func (b errorContextBuilder) addNode(doc *etree.Element, n *Node) {
	switch n.Type {
	case html.ElementNode:
		el := doc.CreateElement(n.Data)
		for _, a := range n.Attr {
			el.CreateAttr(a.Key, a.Val)
		}
		switch {
		case n.FirstChild == nil:
		case n.FirstChild == n.LastChild && n.FirstChild.Type == html.TextNode:
			el.SetText(n.FirstChild.Data)
		default:
			el.AddChild(etree.NewText("..."))
		}
	case html.TextNode:
		if !n.isWhitespace() {
			doc.AddChild(etree.NewText(n.Data))
		}
	case html.DoctypeNode:
		doc.AddChild(etree.NewText("<!DOCTYPE " + n.Data + ">"))
	}
}

func (b errorContextBuilder) wrapParent(doc *etree.Element, n *Node) *etree.Element {
	parent := n.Parent
	if parent == nil || parent.Type != html.ElementNode {
		return doc // do not wrap the root
	}

	doc.Tag = parent.Data
	for _, a := range parent.Attr {
		doc.CreateAttr(a.Key, a.Val)
	}

	wrapper := &etree.Element{}
	wrapper.AddChild(doc)

	return wrapper
}

// buildErrorContext creates an XML tree around the node n to provide context for an error.
func buildErrorContext(n *Node) *etree.Element {
	if n == nil {
		return nil
	}
	doc := &etree.Element{}
	b := errorContextBuilder{}
	b.addPrevSiblings(doc, n)
	b.addNode(doc, n)
	b.addNextSiblings(doc, n)
	return b.wrapParent(doc, n)
}

func renderErrorContext(doc *etree.Element) string {
	dst := &html.Node{Type: html.DocumentNode}

	// traverse the etree.Element and build the html.Node
	var render func(*html.Node, *etree.Element)
	render = func(dst *html.Node, src *etree.Element) {
		for _, c := range src.Child {
			switch t := c.(type) {
			case *etree.Element:
				n := &html.Node{Type: html.ElementNode, Data: t.FullTag()}
				for _, a := range t.Attr {
					n.Attr = append(n.Attr, html.Attribute{Key: a.Key, Val: a.Value})
				}
				dst.AppendChild(n)
				render(n, t)
			case *etree.CharData:
				dst.AppendChild(&html.Node{Type: html.TextNode, Data: t.Data})
			}
		}
	}

	render(dst, doc)

	var buf strings.Builder
	_ = html.Render(&buf, dst)

	return buf.String()
}

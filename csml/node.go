// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Modifications:
// Copyright 2024 Daniel Potapov
//  - Node carries csml flags and source spans instead of namespaces.

package csml

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Node is a node of the document tree. Type is one of html.DocumentNode,
// html.DoctypeNode, html.TextNode or html.ElementNode.
type Node struct {
	// The following fields are replicated from golang.org/x/net/html.Node.
	Parent, FirstChild, LastChild, PrevSibling, NextSibling *Node

	Type     html.NodeType
	DataAtom atom.Atom

	// Data is the tag name of an element, the content of a text node or
	// the content of a doctype.
	Data string

	// Attr is the list of attributes in insertion order.
	Attr []Attribute

	// Flags is the list of flags written on the element or text node line.
	Flags []Flag

	// Span is the location of the markup line that created the node.
	Span Span
}

type Attribute struct {
	Key, Val string
}

// Flag is a flag with its raw argument string. Args is empty for a flag
// without arguments.
type Flag struct {
	Name, Args string
}

// NewElement returns an element node for the tag.
func NewElement(tag string, attr ...Attribute) *Node {
	return &Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(strings.ToLower(tag))),
		Attr:     attr,
	}
}

// NewText returns a text node.
func NewText(text string, flags ...Flag) *Node {
	return &Node{Type: html.TextNode, Data: text, Flags: flags}
}

func (n *Node) isWhitespace() bool {
	return n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

// Attribute returns the value of the attribute key.
func (n *Node) Attribute(key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Flag returns the arguments of the flag written on the node.
func (n *Node) Flag(name string) (string, bool) {
	for _, f := range n.Flags {
		if f.Name == name {
			return f.Args, true
		}
	}
	return "", false
}

// InsertBefore inserts newChild as a child of n, immediately before oldChild
// in the sequence of n's children. oldChild may be nil, in which case newChild
// is appended to the end of n's children.
//
// It will panic if newChild already has a parent or siblings.
func (n *Node) InsertBefore(newChild, oldChild *Node) {
	if newChild.Parent != nil || newChild.PrevSibling != nil || newChild.NextSibling != nil {
		panic("csml: InsertBefore called for an attached child Node")
	}
	var prev, next *Node
	if oldChild != nil {
		prev, next = oldChild.PrevSibling, oldChild
	} else {
		prev = n.LastChild
	}
	if prev != nil {
		prev.NextSibling = newChild
	} else {
		n.FirstChild = newChild
	}
	if next != nil {
		next.PrevSibling = newChild
	} else {
		n.LastChild = newChild
	}
	newChild.Parent = n
	newChild.PrevSibling = prev
	newChild.NextSibling = next
}

// AppendChild adds a node c as a child of n.
//
// It will panic if c already has a parent or siblings.
func (n *Node) AppendChild(c *Node) {
	n.InsertBefore(c, nil)
}

// walk calls fn for n and its descendants in document order, stopping at
// the first error.
func (n *Node) walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := c.walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// openNode is an open node of the writer together with its indentation level.
type openNode struct {
	level int
	node  *Node
}

// nodeStack is the stack of open nodes.
type nodeStack []openNode

// pop pops the stack. It will panic if the stack is empty.
func (s *nodeStack) pop() *Node {
	i := len(*s)
	l := (*s)[i-1]
	*s = (*s)[:i-1]
	return l.node
}

// top returns the most recently pushed entry.
func (s *nodeStack) top() openNode {
	return (*s)[len(*s)-1]
}

package csml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// Descriptor is an element to open, with the values of its selector
// evaluated.
type Descriptor struct {
	TagName    Fragment
	ID         *Fragment
	ClassNames []Fragment
	Attributes []AttrFragment
	Flags      []FlagFragment
	Span       Span
}

type AttrFragment struct {
	Name  Fragment
	Value *Fragment
}

type FlagFragment struct {
	Name Fragment
	Args *Fragment
}

// pendingNode is a node waiting for its values. Nodes without deferred
// values are filled right away.
type pendingNode struct {
	node  *Node
	desc  *Descriptor
	flags []FlagFragment
	text  *Fragment
}

func (p *pendingNode) fragments() []*Fragment {
	var fs []*Fragment
	flags := p.flags
	if d := p.desc; d != nil {
		fs = append(fs, &d.TagName)
		if d.ID != nil {
			fs = append(fs, d.ID)
		}
		for i := range d.ClassNames {
			fs = append(fs, &d.ClassNames[i])
		}
		for i := range d.Attributes {
			fs = append(fs, &d.Attributes[i].Name)
			if d.Attributes[i].Value != nil {
				fs = append(fs, d.Attributes[i].Value)
			}
		}
		flags = d.Flags
	}
	for i := range flags {
		fs = append(fs, &flags[i].Name)
		if flags[i].Args != nil {
			fs = append(fs, flags[i].Args)
		}
	}
	if p.text != nil {
		fs = append(fs, p.text)
	}
	return fs
}

func (p *pendingNode) pending() bool {
	for _, f := range p.fragments() {
		if f.Pending() {
			return true
		}
	}
	return false
}

func (p *pendingNode) resolve(ctx context.Context) error {
	for _, f := range p.fragments() {
		r, err := f.resolve(ctx)
		if err != nil {
			return err
		}
		*f = r
	}
	return nil
}

// Writer builds a document tree from a stream of level-tagged operations.
// Every operation first closes the open elements whose level is not lower
// than its own, so an operation becomes a child of the nearest open element
// with a lower level.
type Writer struct {
	reg    *Registry
	logger *slog.Logger

	root      *Node
	open      nodeStack
	pending   []*pendingNode
	doctype   bool
	finalized bool
}

// NewWriter returns a writer that validates flags against the registry.
func NewWriter(reg *Registry, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	root := &Node{Type: html.DocumentNode}
	return &Writer{
		reg:    reg,
		logger: logger,
		root:   root,
		open:   nodeStack{{level: -1, node: root}},
	}
}

var errFinalized = errors.New("csml: writer is finalized")

// Level closes the open elements with a level of at least level.
func (w *Writer) Level(level int) {
	for len(w.open) > 1 && w.open.top().level >= level {
		w.open.pop()
	}
}

// Doctype adds the doctype. A document can only have one.
func (w *Writer) Doctype(level int, doctype Fragment, span Span) error {
	if w.finalized {
		return errFinalized
	}
	if w.doctype {
		return &SyntaxError{Msg: "multiple doctypes", Span: span}
	}
	w.doctype = true
	w.Level(level)
	n := &Node{Type: html.DoctypeNode, Span: span}
	w.open.top().node.AppendChild(n)
	return w.add(&pendingNode{node: n, text: &doctype})
}

// Open adds the elements of a descendant chain, each nested in the previous
// one, and leaves the last one open at the level. The optional text becomes
// the first child of the last element.
func (w *Writer) Open(level int, chain []Descriptor, text *Fragment) error {
	if w.finalized {
		return errFinalized
	}
	if len(chain) == 0 {
		return fmt.Errorf("csml: empty descendant chain")
	}
	w.Level(level)
	parent := w.open.top().node
	for i := range chain {
		d := chain[i]
		n := &Node{Type: html.ElementNode, Span: d.Span}
		parent.AppendChild(n)
		if err := w.add(&pendingNode{node: n, desc: &d}); err != nil {
			return err
		}
		parent = n
	}
	w.open = append(w.open, openNode{level: level, node: parent})
	if text == nil {
		return nil
	}
	t := &Node{Type: html.TextNode, Span: parent.Span}
	parent.AppendChild(t)
	return w.add(&pendingNode{node: t, text: text})
}

// Text adds a text node with the flags written on its line.
func (w *Writer) Text(level int, flags []FlagFragment, text Fragment, span Span) error {
	if w.finalized {
		return errFinalized
	}
	w.Level(level)
	n := &Node{Type: html.TextNode, Span: span}
	w.open.top().node.AppendChild(n)
	return w.add(&pendingNode{node: n, flags: flags, text: &text})
}

func (w *Writer) add(p *pendingNode) error {
	if p.pending() {
		w.pending = append(w.pending, p)
		return nil
	}
	return w.fill(p)
}

// fill normalizes the node from its resolved values.
func (w *Writer) fill(p *pendingNode) error {
	n := p.node
	var err error
	switch n.Type {
	case html.DoctypeNode:
		n.Data = strings.TrimSpace(p.text.String())
	case html.TextNode:
		n.Data = p.text.String()
		err = w.normalizeFlags(n, p.flags)
	case html.ElementNode:
		err = w.normalizeElement(n, p.desc)
	}
	if err != nil {
		return newNodeError(n, err)
	}
	return nil
}

// Finalize closes all open elements, waits for the deferred values and
// returns the document node. Deferred values are awaited concurrently; the
// first failure cancels the others.
func (w *Writer) Finalize(ctx context.Context) (*Node, error) {
	if w.finalized {
		return nil, errFinalized
	}
	w.finalized = true
	w.open = w.open[:1]

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range w.pending {
		g.Go(func() error {
			if err := p.resolve(gctx); err != nil {
				return newNodeError(p.node, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, p := range w.pending {
		if err := w.fill(p); err != nil {
			return nil, err
		}
	}
	w.pending = nil

	if err := checkVoidElements(w.root); err != nil {
		return nil, err
	}
	return w.root, nil
}

// checkVoidElements rejects void elements that were given children.
func checkVoidElements(root *Node) error {
	return root.walk(func(n *Node) error {
		if n.Type == html.ElementNode && isVoid(n) && n.FirstChild != nil {
			return &SyntaxError{
				Msg:  fmt.Sprintf("void element <%s> cannot have children", n.Data),
				Span: n.FirstChild.Span,
			}
		}
		return nil
	})
}

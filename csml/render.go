package csml

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type writer interface {
	io.Writer
	io.ByteWriter
	WriteString(string) (int, error)
}

var voidElements = map[atom.Atom]bool{
	atom.Area:   true,
	atom.Base:   true,
	atom.Br:     true,
	atom.Col:    true,
	atom.Embed:  true,
	atom.Hr:     true,
	atom.Img:    true,
	atom.Input:  true,
	atom.Link:   true,
	atom.Meta:   true,
	atom.Param:  true,
	atom.Source: true,
	atom.Track:  true,
	atom.Wbr:    true,
}

func isVoid(n *Node) bool {
	a := n.DataAtom
	if a == 0 {
		a = atom.Lookup([]byte(strings.ToLower(n.Data)))
	}
	return voidElements[a]
}

// Render writes the HTML of the tree rooted at n. Text is written as is: it
// was escaped by the transforms. Void elements are written without a closing
// tag and without children.
func Render(w io.Writer, n *Node) error {
	if x, ok := w.(writer); ok {
		return render(x, n)
	}
	buf := bufio.NewWriter(w)
	if err := render(buf, n); err != nil {
		return err
	}
	return buf.Flush()
}

func render(w writer, n *Node) error {
	switch n.Type {
	case html.ErrorNode:
		return errors.New("csml: cannot render an ErrorNode")
	case html.TextNode:
		_, err := w.WriteString(n.Data)
		return err
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := render(w, c); err != nil {
				return err
			}
		}
		return nil
	case html.DoctypeNode:
		if _, err := w.WriteString("<!DOCTYPE "); err != nil {
			return err
		}
		if _, err := w.WriteString(strings.TrimSpace(n.Data)); err != nil {
			return err
		}
		return w.WriteByte('>')
	case html.ElementNode:
		// No-op.
	default:
		return nil
	}

	if err := w.WriteByte('<'); err != nil {
		return err
	}
	if _, err := w.WriteString(n.Data); err != nil {
		return err
	}
	for _, a := range OrderedAttrs(n.Attr) {
		if err := renderAttr(w, a); err != nil {
			return err
		}
	}
	if err := w.WriteByte('>'); err != nil {
		return err
	}
	if isVoid(n) {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := render(w, c); err != nil {
			return err
		}
	}
	if _, err := w.WriteString("</"); err != nil {
		return err
	}
	if _, err := w.WriteString(n.Data); err != nil {
		return err
	}
	return w.WriteByte('>')
}

// OrderedAttrs returns attrs in serialization order: id first, class second.
// The class value has its whitespace collapsed.
func OrderedAttrs(attrs []Attribute) []Attribute {
	out := make([]Attribute, 0, len(attrs))
	var id, class []Attribute
	for _, a := range attrs {
		switch a.Key {
		case "id":
			id = append(id, a)
		case "class":
			a.Val = strings.Join(strings.Fields(a.Val), " ")
			class = append(class, a)
		default:
			out = append(out, a)
		}
	}
	return append(append(id, class...), out...)
}

func renderAttr(w writer, a Attribute) error {
	if err := w.WriteByte(' '); err != nil {
		return err
	}
	if _, err := w.WriteString(a.Key); err != nil {
		return err
	}
	if a.Val == "" {
		return nil
	}
	if err := w.WriteByte('='); err != nil {
		return err
	}
	if !strings.ContainsAny(a.Val, " =\"'`<>") {
		_, err := w.WriteString(a.Val)
		return err
	}
	if err := w.WriteByte('"'); err != nil {
		return err
	}
	if _, err := w.WriteString(strings.ReplaceAll(a.Val, `"`, "&quot;")); err != nil {
		return err
	}
	return w.WriteByte('"')
}

// RenderString renders the tree rooted at n to a string.
func RenderString(n *Node) (string, error) {
	var b strings.Builder
	if err := Render(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

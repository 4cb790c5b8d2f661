// Package gomp converts csml documents into gomponents nodes, so csml
// fragments can be mixed into pages composed with gomponents.
package gomp

import (
	"context"
	"strings"

	"github.com/dpotapov/go-csml/csml"
	"golang.org/x/net/html"
	g "maragu.dev/gomponents"
)

// Node converts the tree rooted at n. Text nodes hold transformed HTML and
// are embedded raw; attribute values are escaped by gomponents.
func Node(n *csml.Node) g.Node {
	switch n.Type {
	case html.DocumentNode:
		return g.Group(children(n))
	case html.DoctypeNode:
		return g.Raw("<!DOCTYPE " + strings.TrimSpace(n.Data) + ">")
	case html.TextNode:
		return g.Raw(n.Data)
	case html.ElementNode:
		var nodes []g.Node
		for _, a := range csml.OrderedAttrs(n.Attr) {
			if a.Val == "" {
				nodes = append(nodes, g.Attr(a.Key))
			} else {
				nodes = append(nodes, g.Attr(a.Key, a.Val))
			}
		}
		return g.El(n.Data, append(nodes, children(n)...)...)
	}
	return g.Group(nil)
}

func children(n *csml.Node) []g.Node {
	var nodes []g.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		nodes = append(nodes, Node(c))
	}
	return nodes
}

// Build builds src with the engine and converts the result.
func Build(ctx context.Context, eng *csml.Engine, src string, vars map[string]any) (g.Node, error) {
	root, err := eng.Build(ctx, src, vars)
	if err != nil {
		return nil, err
	}
	return Node(root), nil
}

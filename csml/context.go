package csml

import "golang.org/x/net/html"

// Context is the view of a text node's surroundings given to transforms.
// Lookups consider the flags written on the text node's own line first, then
// each ancestor element from the nearest to the farthest. On an ancestor an
// explicit flag wins over a default flag of its tag.
type Context struct {
	reg       *Registry
	node      *Node
	ancestors []*Node
}

func newContext(reg *Registry, n *Node) *Context {
	c := &Context{reg: reg, node: n}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			c.ancestors = append(c.ancestors, p)
		}
	}
	return c
}

// Node returns the text node being transformed.
func (c *Context) Node() *Node {
	return c.node
}

// Ancestors returns the ancestor elements, nearest first.
func (c *Context) Ancestors() []*Node {
	return c.ancestors
}

// HasParent reports whether an ancestor has the tag name.
func (c *Context) HasParent(tag string) bool {
	for _, a := range c.ancestors {
		if a.Data == tag {
			return true
		}
	}
	return false
}

// HasFlag reports whether the flag is in context. Arguments in the spec are
// ignored.
func (c *Context) HasFlag(spec string) bool {
	f, err := parseFlagSpec(spec)
	if err != nil {
		return false
	}
	return c.hasFlag(f.Name)
}

// Flag returns the arguments of the nearest occurrence of the flag. The
// arguments are empty for a flag written without them.
func (c *Context) Flag(spec string) (string, bool) {
	f, err := parseFlagSpec(spec)
	if err != nil {
		return "", false
	}
	return c.flag(f.Name)
}

func (c *Context) hasFlag(name string) bool {
	_, ok := c.flag(name)
	return ok
}

func (c *Context) flag(name string) (string, bool) {
	if args, ok := c.node.Flag(name); ok {
		return args, true
	}
	for _, a := range c.ancestors {
		if args, ok := a.Flag(name); ok {
			return args, true
		}
		if c.reg == nil {
			continue
		}
		if args, ok := c.reg.tagFlag(a.Data, name); ok {
			return args, true
		}
	}
	return "", false
}

// ApplyTransforms runs the registry's pipeline over every text node of the
// tree, in document order.
func ApplyTransforms(reg *Registry, root *Node) error {
	return root.walk(func(n *Node) error {
		if n.Type != html.TextNode {
			return nil
		}
		text, err := reg.Apply(n.Data, newContext(reg, n))
		if err != nil {
			return newNodeError(n, err)
		}
		n.Data = text
		return nil
	})
}

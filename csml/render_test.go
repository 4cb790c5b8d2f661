package csml

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestRender(t *testing.T) {
	build := func(n *Node, children ...*Node) *Node {
		for _, c := range children {
			n.AppendChild(c)
		}
		return n
	}

	tests := []struct {
		name string
		node *Node
		want string
	}{
		{
			name: "attribute order",
			node: NewElement("div",
				Attribute{Key: "data-z", Val: "1"},
				Attribute{Key: "class", Val: "b"},
				Attribute{Key: "title", Val: "t"},
				Attribute{Key: "id", Val: "x"},
			),
			want: `<div id=x class=b data-z=1 title=t></div>`,
		},
		{
			name: "attribute quoting",
			node: NewElement("a",
				Attribute{Key: "hidden"},
				Attribute{Key: "href", Val: "/?a=b"},
				Attribute{Key: "title", Val: `say "hi"`},
				Attribute{Key: "data-x", Val: "a'b"},
				Attribute{Key: "data-y", Val: "a`b"},
				Attribute{Key: "data-z", Val: "a<b"},
			),
			want: `<a hidden href="/?a=b" title="say &quot;hi&quot;" data-x="a'b" data-y="a` + "`" + `b" data-z="a<b"></a>`,
		},
		{
			name: "class whitespace",
			node: NewElement("p", Attribute{Key: "class", Val: "  a \n b "}),
			want: `<p class="a b"></p>`,
		},
		{
			name: "text is not escaped",
			node: build(NewElement("p"), NewText("a &lt; <b>")),
			want: `<p>a &lt; <b></p>`,
		},
		{
			name: "document",
			node: build(&Node{Type: html.DocumentNode},
				&Node{Type: html.DoctypeNode, Data: " html "},
				build(NewElement("html"), NewElement("body")),
			),
			want: `<!DOCTYPE html><html><body></body></html>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, tt.node))
			if diff := cmp.Diff(buf.String(), tt.want); diff != "" {
				t.Errorf("diff (-got +want):\n%s", diff)
			}
		})
	}
}

func TestRenderVoidElements(t *testing.T) {
	for _, tag := range []string{
		"area", "base", "br", "col", "embed", "hr", "img",
		"input", "link", "meta", "param", "source", "track", "wbr",
	} {
		t.Run(tag, func(t *testing.T) {
			n := NewElement(tag)
			got, err := RenderString(n)
			require.NoError(t, err)
			require.Equal(t, "<"+tag+">", got)

			// children are never rendered
			n.AppendChild(NewText("child"))
			n.AppendChild(NewElement("span"))
			got, err = RenderString(n)
			require.NoError(t, err)
			require.Equal(t, "<"+tag+">", got)

			// also without an atom
			n = &Node{Type: html.ElementNode, Data: tag}
			got, err = RenderString(n)
			require.NoError(t, err)
			require.Equal(t, "<"+tag+">", got)
		})
	}

	got, err := RenderString(NewElement("my-widget"))
	require.NoError(t, err)
	require.Equal(t, "<my-widget></my-widget>", got)
}

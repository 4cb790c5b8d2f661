package gomp

import (
	"context"
	"strings"
	"testing"

	"github.com/dpotapov/go-csml/csml"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	g "maragu.dev/gomponents"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		src  string
		vars map[string]any
		want string
	}{
		{
			name: "elements and text",
			src:  "div#main.a.b\n  p a < b\n  img[src=/x.png][alt]\n  a[href={{ u }}] go",
			vars: map[string]any{"u": "/?a=1&b=2"},
			want: `<div id="main" class="a b"><p>a &lt; b</p><img src="/x.png" alt><a href="/?a=1&amp;b=2">go</a></div>`,
		},
		{
			name: "doctype",
			src:  "!DOCTYPE html\nhtml\n  body",
			want: `<!DOCTYPE html><html><body></body></html>`,
		},
		{
			name: "raw html text",
			src:  "p:html <b>x</b>",
			want: `<p><b>x</b></p>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Build(context.Background(), csml.New(), tt.src, tt.vars)
			require.NoError(t, err)

			var b strings.Builder
			require.NoError(t, node.Render(&b))
			if diff := cmp.Diff(b.String(), tt.want); diff != "" {
				t.Errorf("diff (-got +want):\n%s", diff)
			}
		})
	}
}

func TestNodeInsideGomponents(t *testing.T) {
	root, err := csml.New().Build(context.Background(), "li one\nli two", nil)
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, g.El("ul", g.Attr("class", "list"), Node(root)).Render(&b))
	require.Equal(t, `<ul class="list"><li>one</li><li>two</li></ul>`, b.String())
}

func TestBuildError(t *testing.T) {
	_, err := Build(context.Background(), csml.New(), "p:nope x", nil)
	require.ErrorIs(t, err, csml.ErrUnknownFlag)
}

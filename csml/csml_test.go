package csml

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestRenderDocuments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		vars map[string]any
		want string
	}{
		{
			name: "selector and interpolation",
			src:  "div#a.b.c\n  span Hello {{name}}",
			vars: map[string]any{"name": "World"},
			want: `<div id=a class="b c"><span>Hello World</span></div>`,
		},
		{
			name: "trailing newlines",
			src:  "p a\np b\n\n",
			want: "<p>a</p><p>b</p>",
		},
		{
			name: "preformatted block at end of file",
			src:  "pre:preformatted\n  x\n",
			want: "<pre>\n  x</pre>",
		},
		{
			name: "preformatted",
			src:  "pre:preformatted\n  first line\n    second line",
			want: "<pre>\n  first line\n    second line</pre>",
		},
		{
			name: "escaping",
			src:  "p a < b & {{ x }}",
			vars: map[string]any{"x": "<i>"},
			want: "<p>a &lt; b &amp; &lt;i&gt;</p>",
		},
		{
			name: "html flag disables escaping",
			src:  "div:html\n  p <b>x</b>\n  :html <i>y</i>\np <u>",
			want: "<div><p><b>x</b></p><i>y</i></div><p>&lt;u&gt;</p>",
		},
		{
			name: "text node flags",
			src:  "p\n  :text-only:html  a   <b>  ",
			want: "<p>a <b> </p>",
		},
		{
			name: "inline transforms",
			src:  "p __a__ **b** ``c`` [d](/e)",
			want: "<p><em>a</em> <strong>b</strong> <code>c</code> <a href=/e>d</a></p>",
		},
		{
			name: "script tag",
			src:  "script\n  if (a < b) {\n    go();\n  }\np",
			want: "<script>if (a < b) {\n  go();\n}</script><p></p>",
		},
		{
			name: "tag defaults ignore case",
			src:  "SCRIPT\n  if (a < b) {\n    go();\n  }",
			want: "<SCRIPT>if (a < b) {\n  go();\n}</SCRIPT>",
		},
		{
			name: "title collapses whitespace",
			src:  "title:preformatted\n  My\n  Page",
			want: "<title> My Page</title>",
		},
		{
			name: "doctype",
			src:  "!DOCTYPE html\nhtml[lang=en]\n  head > meta[charset=utf-8]\n  body",
			want: "<!DOCTYPE html><html lang=en><head><meta charset=utf-8></head><body></body></html>",
		},
		{
			name: "attributes from values",
			src:  "input[type=checkbox][checked={{on ? '' : nil}}][value={{n}}]\na[{{attrs}}] x",
			vars: map[string]any{"on": false, "n": 3, "attrs": map[string]any{"href": "/x", "rel": nil}},
			want: "<input type=checkbox value=3><a href=/x>x</a>",
		},
		{
			name: "class values",
			src:  "li.item.{{ classes }}[class=first] x",
			vars: map[string]any{"classes": map[string]any{"active": true, "hidden": false}},
			want: `<li class="first item active">x</li>`,
		},
		{
			name: "interpolated tag and id",
			src:  "{{ tag }}#{{ id }}",
			vars: map[string]any{"tag": "section", "id": nil},
			want: "<section></section>",
		},
		{
			name: "if chain",
			src:  "@if n > 1\n  p many\n@else if n == 1\n  p one\n@else\n  p none",
			vars: map[string]any{"n": 1},
			want: "<p>one</p>",
		},
		{
			name: "if without else",
			src:  "@if missing\n  p hidden\np shown",
			want: "<p>shown</p>",
		},
		{
			name: "for over slice",
			src:  "ul\n  @for item, i in items\n    li {{ i }}: {{ item }}",
			vars: map[string]any{"items": []string{"a", "b"}},
			want: "<ul><li>0: a</li><li>1: b</li></ul>",
		},
		{
			name: "for over map and int",
			src:  "@for v, k in m\n  b {{k}}={{v}}\n@for i in 3\n  i {{i}}",
			vars: map[string]any{"m": map[string]int{"y": 2, "x": 1}},
			want: "<b>x=1</b><b>y=2</b><i>0</i><i>1</i><i>2</i>",
		},
		{
			name: "trailing statement",
			src:  "ul.list @for x in xs\n  li {{x}}\np @if false\n  span no",
			vars: map[string]any{"xs": []int{1, 2}},
			want: `<ul class=list><li>1</li><li>2</li></ul><p></p>`,
		},
		{
			name: "let and script",
			src:  "@script\n  // greeting\n  greeting = \"Hi\"\n  let who = name ?? \"you\"\n@let punct = \"!\"\np {{ greeting }}, {{ who }}{{ punct }}",
			want: "<p>Hi, you!</p>",
		},
		{
			name: "let is scoped to the block",
			src:  "div\n  @let x = 1\n  p {{ x }}\np {{ x }}",
			want: "<div><p>1</p></div><p></p>",
		},
		{
			name: "siblings before a statement close",
			src:  "div\n  span a\n  @if true\n    p b",
			want: "<div><span>a</span><p>b</p></div>",
		},
		{
			name: "continuation",
			src:  "a.button\n& [href=/go]\n&:html\n  :html <b>Go</b>",
			want: "<a class=button href=/go><b>Go</b></a>",
		},
		{
			name: "expression helpers",
			src:  "p {{ formatDuration(parseDuration(\"1h30m5s\")) }}",
			want: "<p>1h 30m 5s</p>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Render(context.Background(), tt.src, tt.vars)
			require.NoError(t, err)
			if diff := cmp.Diff(got, tt.want); diff != "" {
				t.Errorf("diff (-got +want):\n%s", diff)
			}
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	text := `if (a < b && c > d) "quoted" &amp;`
	out, err := New().Render(context.Background(), "p {{ text }}", map[string]any{"text": text})
	require.NoError(t, err)

	doc, err := html.Parse(strings.NewReader(out))
	require.NoError(t, err)
	var p *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			p = n
		}
		for c := n.FirstChild; c != nil && p == nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	require.NotNil(t, p)
	require.Equal(t, `if (a < b && c > d) "quoted" &`, p.FirstChild.Data)
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantIs  error
		wantMsg string
	}{
		{
			name:    "unknown flag",
			src:     "div\n  p:nope x",
			wantIs:  ErrUnknownFlag,
			wantMsg: `2:3: unknown flag: "nope"`,
		},
		{
			name:    "invalid tag",
			src:     "{{ '1x' }}",
			wantIs:  ErrInvalidName,
			wantMsg: `1:1: invalid name: tag "1x"`,
		},
		{
			name:    "multiple doctypes",
			src:     "!DOCTYPE html\n!DOCTYPE html",
			wantIs:  ErrSyntax,
			wantMsg: "2:1: multiple doctypes",
		},
		{
			name:    "else without if",
			src:     "p\n@else\n  p",
			wantIs:  ErrSyntax,
			wantMsg: "2:1: else without if",
		},
		{
			name:    "unknown statement",
			src:     "@while true",
			wantIs:  ErrSyntax,
			wantMsg: `1:1: unknown statement "while true"`,
		},
		{
			name:    "void element with children",
			src:     "br\n  span x",
			wantIs:  ErrSyntax,
			wantMsg: "2:3: void element <br> cannot have children",
		},
		{
			name:    "indent range",
			src:     "pre:indent(2,11)\n  x",
			wantIs:  ErrRange,
			wantMsg: "1:1: indent: argument out of range: tab size 11 must be between 0 and 10",
		},
		{
			name:    "missing include",
			src:     ":html {{ include('nope') }}",
			wantIs:  ErrModuleNotFound,
			wantMsg: `1:1: include "nope": module not found`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Render(context.Background(), tt.src, nil)
			require.ErrorIs(t, err, tt.wantIs)
			require.EqualError(t, err, tt.wantMsg)
		})
	}
}

func TestSyntaxErrorLine(t *testing.T) {
	_, err := New().Render(context.Background(), "div\n  @else", nil)
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "  @else\n  ^", se.Excerpt())
}

func TestNodeErrorContext(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.AddFlag("fail", func(string, *Context) (string, error) {
		return "", errors.New("cannot render")
	}, FlagOptions{}))

	src := "ul.list\n  li one\n  li two\n  li:fail three\n  li four"
	_, err := (&Engine{Registry: reg}).Render(context.Background(), src, nil)
	require.ErrorContains(t, err, "fail: cannot render")

	var ne *NodeError
	require.ErrorAs(t, err, &ne)
	require.Equal(t, 4, ne.Span.Line)
	require.Equal(t, `<li>three</li>`, ne.HTMLContext())
}

func TestIncludes(t *testing.T) {
	fsys := fstest.MapFS{
		"pages/index.csml":          {Data: []byte("div\n  :html {{ include('header', {title: 'Home'}) }}\n  p body")},
		"pages/header.csml":         {Data: []byte("h1 {{ title }}\n:html {{ include('partials/logo') }}")},
		"shared/partials/logo.csml": {Data: []byte("img[src=/logo.png]")},
		"pages/loop.csml":           {Data: []byte(":html {{ include('loop') }}")},
	}

	eng := New()
	eng.Importer = &FSImporter{FS: fsys, Dir: "pages", SearchPath: []string{"shared"}}
	got, err := eng.Render(context.Background(), ":html {{ include('index') }}", nil)
	require.NoError(t, err)
	require.Equal(t, "<div><h1>Home</h1><img src=/logo.png><p>body</p></div>", got)

	_, err = eng.Render(context.Background(), ":html {{ include('loop') }}", nil)
	require.ErrorContains(t, err, "too many nested includes")

	got, err = New().RenderFile(context.Background(), fsys, "pages/header.csml", map[string]any{"title": "T"})
	require.ErrorIs(t, err, ErrModuleNotFound)
	require.Empty(t, got)
}

func TestImporterFunc(t *testing.T) {
	eng := New()
	eng.Importer = ImporterFunc(func(name string) (string, error) {
		if name == "greet" {
			return "span Hi {{ who }}", nil
		}
		return "", ErrModuleNotFound
	})
	got, err := eng.Render(context.Background(), "p\n  :html {{ include('greet', {who: 'Bob'}) }}", nil)
	require.NoError(t, err)
	require.Equal(t, "<p><span>Hi Bob</span></p>", got)

	// without :html the included markup is escaped like any other text
	got, err = eng.Render(context.Background(), "p {{ include('greet') }}", nil)
	require.NoError(t, err)
	require.Equal(t, "<p>&lt;span&gt;Hi &lt;/span&gt;</p>", got)
}

func TestEngineZeroValue(t *testing.T) {
	var eng Engine
	got, err := eng.Render(context.Background(), "p ok", nil)
	require.NoError(t, err)
	require.Equal(t, "<p>ok</p>", got)
}

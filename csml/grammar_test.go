package csml

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseTokens(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name string
		src  string
		want []Token
	}{
		{
			name: "element with selector and text",
			src:  "div#a.b.c Hello {{name}}",
			want: []Token{{
				Kind: ElementToken,
				Chain: []Selector{{
					TagName:    Lit("div"),
					ID:         ptr(Lit("a")),
					ClassNames: []Splice{Lit("b"), Lit("c")},
				}},
				Text: &Splice{Lits: []string{"Hello ", ""}, Exprs: []string{"name"}},
			}},
		},
		{
			name: "nested levels",
			src:  "ul\n  li one\n  li two\np",
			want: []Token{
				{Kind: ElementToken, Level: 0, Chain: []Selector{{TagName: Lit("ul")}}},
				{Kind: ElementToken, Level: 2, Chain: []Selector{{TagName: Lit("li")}}, Text: ptr(Lit("one"))},
				{Kind: ElementToken, Level: 2, Chain: []Selector{{TagName: Lit("li")}}, Text: ptr(Lit("two"))},
				{Kind: ElementToken, Level: 0, Chain: []Selector{{TagName: Lit("p")}}},
			},
		},
		{
			name: "trailing newline",
			src:  "div\n",
			want: []Token{{Kind: ElementToken, Chain: []Selector{{TagName: Lit("div")}}}},
		},
		{
			name: "trailing blank lines",
			src:  "div\n\n  \n",
			want: []Token{{Kind: ElementToken, Chain: []Selector{{TagName: Lit("div")}}}},
		},
		{
			name: "text lines with trailing newline",
			src:  "p a\np b\n",
			want: []Token{
				{Kind: ElementToken, Chain: []Selector{{TagName: Lit("p")}}, Text: ptr(Lit("a"))},
				{Kind: ElementToken, Chain: []Selector{{TagName: Lit("p")}}, Text: ptr(Lit("b"))},
			},
		},
		{
			name: "leading blank lines and tabs",
			src:  "\n\ndiv\n\tspan",
			want: []Token{
				{Kind: ElementToken, Level: 0, Chain: []Selector{{TagName: Lit("div")}}},
				{Kind: ElementToken, Level: 4, Chain: []Selector{{TagName: Lit("span")}}},
			},
		},
		{
			name: "attributes",
			src:  `a[href=/x][title="say \"hi\""][download][data-x='']`,
			want: []Token{{
				Kind: ElementToken,
				Chain: []Selector{{
					TagName: Lit("a"),
					Attributes: []AttrUse{
						{Name: Lit("href"), Value: ptr(Lit("/x"))},
						{Name: Lit("title"), Value: ptr(Lit(`say "hi"`))},
						{Name: Lit("download")},
						{Name: Lit("data-x"), Value: ptr(Lit(""))},
					},
				}},
			}},
		},
		{
			name: "flags with arguments",
			src:  "div:html:indent(2, 4)",
			want: []Token{{
				Kind: ElementToken,
				Chain: []Selector{{
					TagName: Lit("div"),
					Flags: []FlagUse{
						{Name: Lit("html")},
						{Name: Lit("indent"), Args: ptr(Lit("2, 4"))},
					},
				}},
			}},
		},
		{
			name: "descendant chain",
			src:  "ul.menu > li > a[href=/] Home",
			want: []Token{{
				Kind: ElementToken,
				Chain: []Selector{
					{TagName: Lit("ul"), ClassNames: []Splice{Lit("menu")}},
					{TagName: Lit("li")},
					{TagName: Lit("a"), Attributes: []AttrUse{{Name: Lit("href"), Value: ptr(Lit("/"))}}},
				},
				Text: ptr(Lit("Home")),
			}},
		},
		{
			name: "continuation lines",
			src:  "div.a\n& .b\n&[id=x]",
			want: []Token{{
				Kind: ElementToken,
				Chain: []Selector{{
					TagName:    Lit("div"),
					ClassNames: []Splice{Lit("a"), Lit("b")},
					Attributes: []AttrUse{{Name: Lit("id"), Value: ptr(Lit("x"))}},
				}},
			}},
		},
		{
			name: "text node",
			src:  ":html <b>bold</b>",
			want: []Token{{
				Kind:  TextNodeToken,
				Flags: []FlagUse{{Name: Lit("html")}},
				Text:  ptr(Lit("<b>bold</b>")),
			}},
		},
		{
			name: "preformatted block",
			src:  "pre:preformatted\n  first line\n    second line\np",
			want: []Token{
				{
					Kind:  ElementToken,
					Chain: []Selector{{TagName: Lit("pre"), Flags: []FlagUse{{Name: Lit("preformatted")}}}},
					Text:  ptr(Lit("\n  first line\n    second line")),
				},
				{Kind: ElementToken, Chain: []Selector{{TagName: Lit("p")}}},
			},
		},
		{
			name: "preformatted tag default",
			src:  "script\n  let a = 1;",
			want: []Token{{
				Kind:  ElementToken,
				Chain: []Selector{{TagName: Lit("script")}},
				Text:  ptr(Lit("\n  let a = 1;")),
			}},
		},
		{
			name: "doctype, statement and script",
			src:  "!DOCTYPE html\n@if x\n  p\n@script\n  a = 1",
			want: []Token{
				{Kind: DoctypeToken, Doctype: Lit("html")},
				{Kind: StatementToken, Code: "if x"},
				{Kind: ElementToken, Level: 2, Chain: []Selector{{TagName: Lit("p")}}},
				{Kind: ScriptToken, Code: "\n  a = 1"},
			},
		},
		{
			name: "trailing statement",
			src:  "ul @for x in items",
			want: []Token{{
				Kind:      ElementToken,
				Chain:     []Selector{{TagName: Lit("ul")}},
				Statement: "for x in items",
			}},
		},
		{
			name: "interpolated tag name",
			src:  "{{tag}}.x",
			want: []Token{{
				Kind: ElementToken,
				Chain: []Selector{{
					TagName:    Splice{Lits: []string{"", ""}, Exprs: []string{"tag"}},
					ClassNames: []Splice{Lit("x")},
				}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.src, reg)
			require.NoError(t, err)
			require.NotEmpty(t, got)
			require.Equal(t, EOFToken, got[len(got)-1].Kind)

			// spans are checked separately
			got = got[:len(got)-1]
			for i := range got {
				got[i].Span = Span{}
			}
			if diff := cmp.Diff(got, tt.want); diff != "" {
				t.Errorf("diff (-got +want):\n%s", diff)
			}
		})
	}
}

func TestParseSpans(t *testing.T) {
	tokens, err := Parse("div\n  span hello", NewRegistry())
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	require.Equal(t, Span{Offset: 0, Line: 1, Column: 1, Length: 3}, tokens[0].Span)
	require.Equal(t, Span{Offset: 6, Line: 2, Column: 3, Length: 10}, tokens[1].Span)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
		line int
		col  int
	}{
		{
			name: "unended interpolation",
			src:  "p hello {{ name",
			msg:  "unended interpolation",
			line: 1,
			col:  9,
		},
		{
			name: "nested interpolation",
			src:  "div\n  p {{ a {{ b }} }}",
			msg:  "interpolations cannot be nested",
			line: 2,
			col:  10,
		},
		{
			name: "unclosed attribute",
			src:  "a[href=x",
			msg:  `expected "]"`,
			line: 1,
			col:  9,
		},
		{
			name: "missing flag name",
			src:  "div:(x)",
			msg:  "expected identifier",
			line: 1,
			col:  5,
		},
		{
			name: "bad continuation",
			src:  "div\n& p",
			msg:  "expected one of id, class name, attribute or flag",
			line: 2,
			col:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, NewRegistry())
			require.ErrorIs(t, err, ErrSyntax)

			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			require.Equal(t, tt.msg, se.Msg)
			require.Equal(t, tt.line, se.Span.Line)
			require.Equal(t, tt.col, se.Span.Column)
		})
	}
}

func TestSyntaxErrorExcerpt(t *testing.T) {
	_, err := Parse("p {{ x", nil)
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "p {{ x\n  ^", se.Excerpt())
}

func TestParseFlagSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    Flag
		wantErr bool
	}{
		{spec: "html", want: Flag{Name: "html"}},
		{spec: ":html", want: Flag{Name: "html"}},
		{spec: ":indent(2,4)", want: Flag{Name: "indent", Args: "2,4"}},
		{spec: "indent(2)", wantErr: true},
		{spec: "", wantErr: true},
		{spec: "a b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := parseFlagSpec(tt.spec)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrSyntax)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}

// Package markdown adds a :markdown flag to a csml registry. Block text
// under the flag is rendered as Markdown with goldmark.
package markdown

import (
	"bytes"
	"strings"

	"github.com/dpotapov/go-csml/csml"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

// FlagName is the name of the flag added by Register.
const FlagName = "markdown"

// Register adds the preformatted :markdown flag. It runs ahead of the inline
// emphasis transform, so Markdown syntax reaches goldmark untouched. Raw HTML
// in the Markdown is only kept when the :html flag is in context as well.
func Register(r *csml.Registry, opts ...goldmark.Option) error {
	return r.AddFlag(FlagName, Transform(opts...), csml.FlagOptions{
		Preformatted: true,
		Before:       "emphasis",
	})
}

// Transform returns the transform behind the :markdown flag.
func Transform(opts ...goldmark.Option) csml.TransformFunc {
	opts = append([]goldmark.Option{goldmark.WithExtensions(extension.GFM)}, opts...)
	safe := goldmark.New(opts...)
	unsafe := goldmark.New(append(opts, goldmark.WithRendererOptions(gmhtml.WithUnsafe()))...)

	return func(text string, c *csml.Context) (string, error) {
		md := safe
		if c.HasFlag("html") {
			md = unsafe
		} else {
			// the html flag has escaped the text already
			text = html.UnescapeString(text)
		}
		var buf bytes.Buffer
		if err := md.Convert([]byte(csml.Dedent(text)), &buf); err != nil {
			return "", err
		}
		return strings.TrimRight(buf.String(), "\n"), nil
	}
}

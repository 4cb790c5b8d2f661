// Package csml compiles indentation-sensitive markup to HTML.
//
// A document is a sequence of lines. A line is an element with a CSS-like
// selector (div#main.wide[lang=en]:html), a text node starting with a flag
// (:preformatted ...), a @statement, a @script block or a doctype. Nesting
// follows indentation. Text and selectors may contain {{ expr }}
// placeholders evaluated by an Evaluator.
//
// Every text node runs through the flags and transforms of a Registry before
// the tree is rendered.
package csml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"path"
	"strings"
	"sync"
	"time"
)

// maxIncludeDepth limits nested include() calls.
const maxIncludeDepth = 32

// Engine renders markup documents. The zero value renders with the default
// registry and an ExprEvaluator.
//
// An Engine may be used by multiple goroutines as long as its fields and its
// Registry are not modified.
type Engine struct {
	Registry  *Registry
	Evaluator Evaluator

	// Importer resolves modules for include(). Without an Importer every
	// include fails with ErrModuleNotFound.
	Importer Importer

	Logger *slog.Logger
}

// New returns an Engine with its own default registry.
func New() *Engine {
	return &Engine{
		Registry:  NewRegistry(),
		Evaluator: &ExprEvaluator{},
	}
}

var (
	defaultRegistry  = sync.OnceValue(NewRegistry)
	defaultEvaluator = &ExprEvaluator{}
	discardLogger    = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func (e *Engine) registry() *Registry {
	if e.Registry == nil {
		return defaultRegistry()
	}
	return e.Registry
}

func (e *Engine) evaluator() Evaluator {
	if e.Evaluator == nil {
		return defaultEvaluator
	}
	return e.Evaluator
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return discardLogger
	}
	return e.Logger
}

// Parse parses a document into tokens with the engine's registry.
func (e *Engine) Parse(src string) ([]Token, error) {
	return Parse(src, e.registry())
}

// Build parses and interprets the document, waits for the deferred values
// and applies the transforms. vars are the variables visible to expressions.
func (e *Engine) Build(ctx context.Context, src string, vars map[string]any) (*Node, error) {
	return e.build(ctx, src, vars, 0)
}

func (e *Engine) build(ctx context.Context, src string, vars map[string]any, depth int) (*Node, error) {
	start := time.Now()
	reg := e.registry()
	src = normalizeSource(src)

	tokens, err := Parse(src, reg)
	if err != nil {
		return nil, err
	}

	env := make(map[string]any, len(vars)+1)
	env["include"] = e.include(depth)
	maps.Copy(env, vars)

	w := NewWriter(reg, e.logger())
	in := &interp{ctx: ctx, eval: e.evaluator(), w: w, src: src}
	if err := in.run(tokens, env); err != nil {
		return nil, withLine(src, err)
	}
	root, err := w.Finalize(ctx)
	if err != nil {
		return nil, withLine(src, err)
	}
	if err := ApplyTransforms(reg, root); err != nil {
		return nil, err
	}

	e.logger().Debug("Built document",
		slog.Int("tokens", len(tokens)),
		slog.Int("depth", depth),
		slog.Duration("duration", time.Since(start)))
	return root, nil
}

// withLine fills in the source line of a SyntaxError raised after parsing.
func withLine(src string, err error) error {
	var se *SyntaxError
	if errors.As(err, &se) && se.Line == "" {
		se.Line = lineAt(src, se.Span.Offset)
	}
	return err
}

// Render builds the document and renders it to HTML.
func (e *Engine) Render(ctx context.Context, src string, vars map[string]any) (string, error) {
	root, err := e.Build(ctx, src, vars)
	if err != nil {
		return "", err
	}
	return RenderString(root)
}

// RenderFile renders the named file of fsys. Without an Importer, includes
// are resolved next to the file.
func (e *Engine) RenderFile(ctx context.Context, fsys fs.FS, name string, vars map[string]any) (string, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", err
	}
	eng := *e
	if eng.Importer == nil {
		eng.Importer = &FSImporter{FS: fsys, Dir: path.Dir(name)}
	}
	return eng.Render(ctx, string(b), vars)
}

// include returns the include(name[, vars]) function. The module is
// rendered when its value is awaited, so includes of a document are
// rendered concurrently.
func (e *Engine) include(depth int) func(name string, args ...any) Deferred {
	return func(name string, args ...any) Deferred {
		return DeferredFunc(func(ctx context.Context) (any, error) {
			if depth >= maxIncludeDepth {
				return nil, fmt.Errorf("include %q: too many nested includes", name)
			}
			if e.Importer == nil {
				return nil, fmt.Errorf("include %q: %w", name, ErrModuleNotFound)
			}
			src, err := e.Importer.Import(name)
			if err != nil {
				return nil, fmt.Errorf("include %q: %w", name, err)
			}
			vars := map[string]any{}
			for _, a := range args {
				m, ok := a.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("include %q: arguments must be a map, got %T", name, a)
				}
				maps.Copy(vars, m)
			}
			root, err := e.build(ctx, src, vars, depth+1)
			if err != nil {
				return nil, fmt.Errorf("include %q: %w", name, err)
			}
			var b strings.Builder
			if err := Render(&b, root); err != nil {
				return nil, err
			}
			return b.String(), nil
		})
	}
}

package pages

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"path"

	"github.com/dpotapov/go-csml/csml"
)

// errorVars describes a render error to the error page. "error" is the
// message; "errors" lists every joined error with its position and, where
// known, the source excerpt or the HTML around the failing node.
func errorVars(err error) map[string]any {
	errs := []error{err}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		errs = multi.Unwrap()
	}

	var list []map[string]any
	for _, e := range errs {
		entry := map[string]any{"message": e.Error()}

		var se *csml.SyntaxError
		var ne *csml.NodeError
		switch {
		case errors.As(e, &se):
			entry["line"] = se.Span.Line
			entry["column"] = se.Span.Column
			entry["excerpt"] = se.Excerpt()
		case errors.As(e, &ne):
			if !ne.Span.IsZero() {
				entry["line"] = ne.Span.Line
				entry["column"] = ne.Span.Column
			}
			entry["context"] = ne.HTMLContext()
		}
		list = append(list, entry)
	}
	return map[string]any{"error": err.Error(), "errors": list}
}

// renderErrorPage renders the ErrorPage for a page in dir that failed with
// renderErr. The page variables stay visible to the error page.
func (h *Handler) renderErrorPage(ctx context.Context, dir string, vars map[string]any, renderErr error) (string, error) {
	imp := h.importer(dir)
	src, err := imp.Import(h.ErrorPage)
	if err != nil {
		return "", fmt.Errorf("import error page %s: %w", h.ErrorPage, err)
	}

	eng := h.engineFor(imp)
	errVars := maps.Clone(vars)
	maps.Copy(errVars, errorVars(renderErr))
	errVars["status"] = http.StatusInternalServerError
	out, err := eng.Render(ctx, src, errVars)
	if err != nil {
		return "", fmt.Errorf("render error page %s: %w", path.Join(dir, h.ErrorPage), err)
	}
	return out, nil
}

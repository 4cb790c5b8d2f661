package pages

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/dpotapov/go-csml/csml"
)

// fetch returns the fetch(url) expression function. The request is served
// in-process by the Router with the cookies of the page request. The value
// resolves to the response body when the document is finalized, so the
// fetches of a page run concurrently. Error statuses fail the render.
func (h *Handler) fetch(page *http.Request) func(url string) csml.Deferred {
	return func(url string) csml.Deferred {
		return csml.DeferredFunc(func(ctx context.Context) (any, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: %w", url, err)
			}
			req.RequestURI = url
			for _, c := range page.Cookies() {
				req.AddCookie(c)
			}

			rr := httptest.NewRecorder()
			h.Router.ServeHTTP(rr, req)
			res := rr.Result()
			defer res.Body.Close()

			body, err := io.ReadAll(res.Body)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
			}
			if res.StatusCode >= http.StatusBadRequest {
				return nil, fmt.Errorf("fetch %s: %s", url, res.Status)
			}
			h.logger.Debug("Fetch", slog.String("url", url), slog.Int("status", res.StatusCode))
			return string(body), nil
		})
	}
}

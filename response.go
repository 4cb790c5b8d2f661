package pages

import (
	"net/http"
	"sync"
)

// response collects the status code and headers set by page expressions.
// The setters return an empty string, so a page calls them from a
// placeholder: {{ setStatus(404) }}.
type response struct {
	mu     sync.Mutex
	status int
	header http.Header
}

func newResponse() *response {
	return &response{header: make(http.Header)}
}

func (r *response) funcs() map[string]any {
	return map[string]any{
		"setStatus": func(code int) string {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.status = code
			return ""
		},
		"setHeader": func(key, value string) string {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.header.Set(key, value)
			return ""
		},
		"setCookie": func(name, value string, maxAge ...int) string {
			c := &http.Cookie{Name: name, Value: value, Path: "/", HttpOnly: true}
			if len(maxAge) > 0 {
				c.MaxAge = maxAge[0]
			}
			r.mu.Lock()
			defer r.mu.Unlock()
			r.header.Add("Set-Cookie", c.String())
			return ""
		},
		"redirect": func(url string, code ...int) string {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.status = http.StatusFound
			if len(code) > 0 {
				r.status = code[0]
			}
			r.header.Set("Location", url)
			return ""
		},
	}
}

// write sends the collected headers and status. A zero status leaves the
// default to the first write of the body.
func (r *response) write(w http.ResponseWriter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, vv := range r.header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	if r.status != 0 {
		w.WriteHeader(r.status)
	}
}

package pages

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
)

// RequestArg is the request as seen by page expressions through the
// "request" variable.
type RequestArg struct {
	Method     string              `expr:"method"`
	URL        string              `expr:"url"`
	Host       string              `expr:"host"`
	Port       string              `expr:"port"`
	Scheme     string              `expr:"scheme"`
	Path       string              `expr:"path"`
	Query      map[string][]string `expr:"query"`
	RemoteAddr string              `expr:"remote_addr"`

	Headers map[string][]string `expr:"headers"`
	Cookies []*http.Cookie      `expr:"cookies"`

	// Body is set for JSON and url-encoded form requests. Form fields are
	// decoded with DecodeForm.
	Body map[string]any `expr:"body"`
}

// NewRequestArg reads r into a RequestArg. The body of JSON and form
// requests is consumed; decoding problems are logged and leave Body empty.
func NewRequestArg(r *http.Request, logger *slog.Logger) *RequestArg {
	arg := &RequestArg{
		Method:     r.Method,
		URL:        r.RequestURI,
		Host:       r.URL.Hostname(),
		Port:       r.URL.Port(),
		Scheme:     r.URL.Scheme,
		Path:       r.URL.Path,
		Query:      r.URL.Query(),
		RemoteAddr: r.RemoteAddr,
		Headers:    r.Header,
		Cookies:    r.Cookies(),
	}
	if r.Body == nil {
		return arg
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&arg.Body); err != nil {
			logger.Warn("Decode JSON body", slog.String("url", r.URL.Redacted()), slog.Any("error", err))
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			logger.Warn("Parse form", slog.String("url", r.URL.Redacted()), slog.Any("error", err))
		} else if len(r.PostForm) > 0 {
			arg.Body = DecodeForm(r.PostForm, logger)
		}
	}
	return arg
}

// Package pages serves csml documents over HTTP. URL paths map onto the
// files of an fs.FS: *.csml files are rendered, everything else is served
// as is.
package pages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dpotapov/go-csml/csml"

	"github.com/gorilla/websocket"
)

// csmlExt is the extension of the page files. It is used when matching files
// in the file system.
const csmlExt = ".csml"

// defaultSearchPath is the default list of directories to search for included modules.
var defaultSearchPath = []string{".", ".lib", "/", "/.lib"}

// validIdentifierRegex is a regular expression that matches valid keywords for dynamic
// matching purposes.
var validIdentifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// wsUpgrader is a Gorilla WebSocket instance, used to respond HTTP requests with WebSocket.
var wsUpgrader = websocket.Upgrader{}

type Handler struct {
	// FileSystem to serve pages and other web assets from.
	FileSystem fs.FS

	// Engine renders the pages. Its Registry and Evaluator are shared by all
	// pages. If the Engine has an Importer, it is asked first for included
	// modules; ErrModuleNotFound falls back to the SearchPath.
	//
	// If not set, csml.New() is used.
	Engine *csml.Engine

	// SearchPath is a list of directories in the FileSystem to search for modules
	// included with include("name"). The list may contain absolute or relative paths.
	// Relative paths are resolved relative to the rendered page's directory.
	//
	// If not set, the following default paths are used:
	// 1. "." (the directory of the rendered page)
	// 2. ".lib" (a directory named ".lib" in the directory of the rendered page)
	// 3. "/" (the root directory of the FileSystem)
	// 4. "/.lib" (a directory named ".lib" in the root directory of the FileSystem)
	SearchPath []string

	// ErrorPage is the name of a module rendered when a page fails to render.
	// It is looked up like an included module and gets the page variables plus
	// "error", "errors" and "status".
	// If not set, a standard "Internal Server Error" is sent back to the client.
	ErrorPage string

	// Router serves the requests made by fetch(url) in pages. If not set,
	// fetch is not available.
	Router http.Handler

	// OnError is a callback that is called when an error occurs while serving a page.
	OnError func(*http.Request, error)

	// Logger configures logging for internal events.
	Logger *slog.Logger

	// init is used to initialize the handler only once.
	init sync.Once

	// logger is a private logger instance that is used to log internal events.
	logger *slog.Logger

	// engine is Engine or the default engine.
	engine *csml.Engine

	// assets versions the static files referenced with asset(path).
	assets *assetVersions
}

// ServeHTTP implements the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.init.Do(func() {
		h.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		if h.Logger != nil {
			h.logger = h.Logger
		}
		h.engine = h.Engine
		if h.engine == nil {
			h.engine = csml.New()
		}
		h.assets = newAssetVersions(h.FileSystem)
	})

	if err := h.handleRequest(w, r); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		h.onError(r, err)
	}
}

func (h *Handler) onError(r *http.Request, err error) {
	h.logger.Error("Serve HTTP request", "url", r.URL.Redacted(), "error", err)
	if h.OnError != nil {
		h.OnError(r, err)
	}
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) error {
	if h.assets.serve(w, r) {
		return nil
	}

	urlPath := cleanPath(r.URL.EscapedPath())

	params := map[string]string{}

	fsPath, err := h.matchFS(urlPath, ".", params)
	if err != nil {
		return err
	}

	if fsPath == "" {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return nil
	}

	if strings.HasSuffix(fsPath, csmlExt) {
		return h.servePage(w, r, fsPath, params)
	}

	return h.serveFile(w, r, fsPath)
}

// pageVars collects the variables of a page: the query string, then the route
// params (which win over query values of the same name), plus the request,
// the route, and the page functions.
func (h *Handler) pageVars(r *http.Request, params map[string]string, resp *response) map[string]any {
	vars := map[string]any{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			vars[k] = v[0]
		}
	}
	route := map[string]any{}
	for k, v := range params {
		vars[k] = v
		route[k] = v
	}
	vars["route"] = route
	vars["request"] = NewRequestArg(r, h.logger)
	vars["asset"] = h.assets.path
	if h.Router != nil {
		vars["fetch"] = h.fetch(r)
	}
	for k, fn := range resp.funcs() {
		vars[k] = fn
	}
	return vars
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, fsPath string, params map[string]string) error {
	dir := path.Dir(fsPath)
	eng := h.engineFor(h.importer(dir))

	if websocket.IsWebSocketUpgrade(r) {
		h.serveWebSocket(w, r, eng, fsPath, params)
		return nil
	}

	resp := newResponse()
	vars := h.pageVars(r, params, resp)

	out, err := eng.RenderFile(r.Context(), h.FileSystem, fsPath, vars)
	if err != nil {
		if h.ErrorPage == "" {
			return fmt.Errorf("render %s: %w", fsPath, err)
		}
		page, pageErr := h.renderErrorPage(r.Context(), dir, vars, err)
		if pageErr != nil {
			return errors.Join(fmt.Errorf("render %s: %w", fsPath, err), pageErr)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, page)
		h.onError(r, err)
		return nil
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	resp.write(w)
	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	return nil
}

// serveWebSocket renders the page once per JSON message received on the
// connection. The message is an object of variables merged over the page
// variables; every render is sent back as one text message.
//
// The connection is hijacked, so errors go to OnError only.
func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request, eng *csml.Engine, fsPath string, params map[string]string) {
	// Upgrade replies to the client itself when it fails
	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.onError(r, fmt.Errorf("upgrade websocket: %w", err))
		return
	}
	defer ws.Close()

	if err := h.renderMessages(r, ws, eng, fsPath, params); err != nil {
		h.onError(r, err)
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
}

func (h *Handler) renderMessages(r *http.Request, ws *websocket.Conn, eng *csml.Engine, fsPath string, params map[string]string) error {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		var args map[string]any
		if err := ws.ReadJSON(&args); err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read websocket message: %w", err)
		}

		vars := h.pageVars(r, params, newResponse())
		for k, v := range args {
			vars[k] = v
		}

		out, err := eng.RenderFile(ctx, h.FileSystem, fsPath, vars)
		if err != nil {
			return fmt.Errorf("render %s: %w", fsPath, err)
		}

		mw, err := ws.NextWriter(websocket.TextMessage)
		if err != nil {
			return fmt.Errorf("get websocket writer: %w", err)
		}
		if _, err := io.WriteString(mw, out); err != nil {
			return fmt.Errorf("write websocket message: %w", err)
		}
		if err := mw.Close(); err != nil {
			return fmt.Errorf("close websocket writer: %w", err)
		}
	}
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, fsPath string) error {
	r.URL.Path = fsPath
	r.URL.RawPath = fsPath
	http.FileServerFS(h.FileSystem).ServeHTTP(w, r)
	return nil
}

// engineFor returns a copy of the engine that includes modules with imp.
func (h *Handler) engineFor(imp csml.Importer) *csml.Engine {
	eng := *h.engine
	eng.Importer = imp
	if eng.Logger == nil {
		eng.Logger = h.logger
	}
	return &eng
}

// match examples:
// - /foo/bar -> /foo/bar.csml
// - /foo -> /foo/index.csml
// - / -> /index.csml
// - /foo/bar/ -> /foo/bar/index.csml
// - /foo/bar/baz -> /foo/bar/baz.csml
// - /foo/bar/baz/ -> /foo/bar/baz/index.csml
// - /foo/file.txt -> /foo/file.txt
func (h *Handler) matchFS(urlPath, dir string, params map[string]string) (string, error) {
	if urlPath == "" {
		return "", nil
	}

	entries, err := fs.ReadDir(h.FileSystem, dir)
	if err != nil {
		return "", fmt.Errorf("read directory %s: %w", dir, err)
	}

	seg, rest := firstSegment(urlPath)

	// skip hidden files and directories
	if seg[0] == '.' {
		return "", nil
	}

	var m string

	if rest != "" {
		sub, err := h.matchDir(seg, dir, entries, params)
		if err != nil {
			return "", err
		}
		if sub != "" {
			m, err = h.matchFS(rest, sub, params)
		}
		if m != "" || err != nil {
			return m, err
		}
	} else {
		m, err = h.matchFile(seg, dir, entries, params)
	}
	if m != "" || err != nil {
		return m, err
	}

	// no match, try catch-all
	catchAllFile, err := findCatchAllFile(entries)
	if err != nil {
		return "", err
	}

	if catchAllFile != "" {
		argName := catchAllFile[2 : len(catchAllFile)-len(csmlExt)]
		params[argName] = urlPath

		return path.Join(dir, catchAllFile), nil
	}

	return "", nil // no match
}

func (h *Handler) matchDir(seg, dir string, entries []fs.DirEntry, params map[string]string) (string, error) {
	dynamicMatch := ""

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()

		// check exact match
		if name == seg {
			return path.Join(dir, name), nil
		}

		if name[0] == '_' {
			if !validIdentifierRegex.MatchString(name[1:]) {
				return "", fmt.Errorf("invalid dynamic match in %s", dir)
			}
			if dynamicMatch != "" {
				return "", fmt.Errorf("multiple dynamic matches in %s", dir)
			}
			if params[name[1:]] != "" {
				return "", fmt.Errorf("duplicate dynamic match in %s", dir)
			}
			dynamicMatch = name
		}
	}

	// if no exact match, use the dynamic match
	if dynamicMatch != "" {
		params[dynamicMatch[1:]] = seg
		return path.Join(dir, dynamicMatch), nil
	}

	return "", nil // no match
}

func (h *Handler) matchFile(seg, dir string, entries []fs.DirEntry, params map[string]string) (string, error) {
	dynamicMatch := ""

	if seg == "/" {
		seg = "index"
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		if path.Ext(name) != csmlExt {
			// static files match by full name
			if name == seg {
				return path.Join(dir, name), nil
			}
			continue
		}

		// match page by base name
		if strings.TrimSuffix(name, csmlExt) == seg {
			return path.Join(dir, name), nil
		}

		if name[0] == '_' && len(name) > len(csmlExt)+1 && !strings.HasPrefix(name, "__") {
			pn := name[1 : len(name)-len(csmlExt)]
			if !validIdentifierRegex.MatchString(pn) {
				return "", fmt.Errorf("invalid dynamic match in %s", dir)
			}
			if dynamicMatch != "" {
				return "", fmt.Errorf("multiple dynamic matches in %s", dir)
			}
			if params[pn] != "" {
				return "", fmt.Errorf("duplicate dynamic match in %s", dir)
			}
			dynamicMatch = name
		}
	}

	// if no exact match, use the dynamic match
	if dynamicMatch != "" {
		pn := dynamicMatch[1 : len(dynamicMatch)-len(csmlExt)]
		params[pn] = seg
		return path.Join(dir, dynamicMatch), nil
	}

	return "", nil // no match
}

// importer builds a csml.Importer that resolves modules relative to the
// provided dir path, by searching name + ".csml" in SearchPath.
func (h *Handler) importer(dir string) csml.Importer {
	searchPath := h.SearchPath
	if len(searchPath) == 0 {
		searchPath = defaultSearchPath
	}

	dirs := make([]string, len(searchPath))
	for i, sp := range searchPath {
		// if the search path is absolute, ignore the page's path:
		if path.IsAbs(sp) {
			dirs[i] = path.Clean(strings.TrimPrefix(sp, "/"))
		} else {
			dirs[i] = path.Join(dir, sp)
		}
	}
	fsImp := &csml.FSImporter{FS: h.FileSystem, Dir: dirs[0], SearchPath: dirs[1:]}

	custom := h.engine.Importer
	if custom == nil {
		return fsImp
	}
	return csml.ImporterFunc(func(name string) (string, error) {
		src, err := custom.Import(name)
		if err == nil || !errors.Is(err, csml.ErrModuleNotFound) {
			return src, err
		}
		return fsImp.Import(name)
	})
}

// cleanPath returns the canonical path for p, eliminating . and .. elements.
//
// Copied from net/http/server.go
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	// path.Clean removes trailing slash except for root;
	// put the trailing slash back if necessary.
	if p[len(p)-1] == '/' && np != "/" {
		// Fast path for common case of p being the string we want:
		if len(p) == len(np)+1 && strings.HasPrefix(p, np) {
			np = p
		} else {
			np += "/"
		}
	}
	return np
}

// firstSegment splits path into its first segment, and the rest.
// The path must begin with "/".
// If path consists of only a slash, firstSegment returns ("/", "").
// The segment is returned unescaped, if possible.
//
// Copied from net/http/routing_tree.go.
func firstSegment(path string) (seg, rest string) {
	if path == "/" {
		return "/", ""
	}
	path = path[1:] // drop initial slash
	i := strings.IndexByte(path, '/')
	if i < 0 {
		i = len(path)
	}
	return pathUnescape(path[:i]), path[i:]
}

// Copied from net/http/routing_tree.go.
func pathUnescape(path string) string {
	u, err := url.PathUnescape(path)
	if err != nil {
		// Invalidly escaped path; use the original
		return path
	}
	return u
}

func findCatchAllFile(entries []fs.DirEntry) (string, error) {
	catchAll := ""

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, csmlExt) || len(name) < 3 || name[:2] != "__" {
			continue
		}
		if catchAll != "" {
			return "", fmt.Errorf("multiple catch-all files found")
		}
		catchAll = name
	}

	return catchAll, nil
}

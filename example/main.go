package main

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"

	pages "github.com/dpotapov/go-csml"
	"github.com/dpotapov/go-csml/csml"
	"github.com/dpotapov/go-csml/markdown"

	g "maragu.dev/gomponents"
)

func LoggerMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("HTTP request", "method", r.Method, "url", r.URL)
		next.ServeHTTP(w, r)
	})
}

type todoDB struct {
	todos []string
	mu    sync.Mutex
}

func (b *todoDB) Todos() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	todos := make([]string, len(b.todos))
	copy(todos, b.todos)
	return todos
}

func (b *todoDB) Add(todo string) {
	if todo == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.todos = append(b.todos, todo)
}

func (b *todoDB) Del(index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index > 0 && index <= len(b.todos) {
		b.todos = append(b.todos[:index-1], b.todos[index:]...)
	}
}

// api serves the todo list fragment fetched by the pages, and the form posts
// that change it.
func api(db *todoDB) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/todos", func(w http.ResponseWriter, r *http.Request) {
		var items []g.Node
		for i, todo := range db.Todos() {
			items = append(items, g.El("li",
				g.Text(todo),
				g.El("form", g.Attr("method", "post"), g.Attr("action", "/api/todos/del"),
					g.El("input", g.Attr("type", "hidden"), g.Attr("name", "index"), g.Attr("value", strconv.Itoa(i+1))),
					g.El("button", g.Text("done")),
				),
			))
		}
		_ = g.El("ul", g.Group(items)).Render(w)
	})
	mux.HandleFunc("POST /api/todos", func(w http.ResponseWriter, r *http.Request) {
		db.Add(r.FormValue("todo"))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
	mux.HandleFunc("POST /api/todos/del", func(w http.ResponseWriter, r *http.Request) {
		i, _ := strconv.Atoi(r.FormValue("index"))
		db.Del(i)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
	return mux
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	reg := csml.NewRegistry()
	if err := markdown.Register(reg); err != nil {
		logger.Error("Register markdown flag", "error", err)
		os.Exit(1)
	}

	router := api(&todoDB{})

	ph := &pages.Handler{
		FileSystem: os.DirFS("./example/pages"),
		Engine:     &csml.Engine{Registry: reg, Logger: logger},
		Router:     router,
		ErrorPage:  "error",
		Logger:     logger,
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", router)
	mux.Handle("/", ph)

	logger.Info("Starting HTTP server", "address", "http://localhost:8080")

	err := http.ListenAndServe(":8080", LoggerMiddleware(mux, logger))

	logger.Error("HTTP server error", "error", err)
}

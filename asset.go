package pages

import (
	"fmt"
	"hash/fnv"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
)

// assetVersions hands out versioned paths for static files of the file
// system and serves them back. asset("/css/site.css") in a page yields
// "/css/site.0123456789abcdef.css", where the version is the FNV-1a hash of
// the file content. Files are hashed once; a changed file needs a restart.
type assetVersions struct {
	fsys fs.FS

	mu sync.RWMutex

	// versioned maps a served path to the file it was made from.
	versioned map[string]string

	// paths maps a file to its served path.
	paths map[string]string
}

func newAssetVersions(fsys fs.FS) *assetVersions {
	return &assetVersions{
		fsys:      fsys,
		versioned: make(map[string]string),
		paths:     make(map[string]string),
	}
}

// path implements the asset(name) expression function.
func (a *assetVersions) path(name string) (string, error) {
	file := strings.TrimPrefix(path.Clean("/"+name), "/")

	a.mu.RLock()
	p, ok := a.paths[file]
	a.mu.RUnlock()
	if ok {
		return p, nil
	}

	b, err := fs.ReadFile(a.fsys, file)
	if err != nil {
		return "", fmt.Errorf("asset %s: %w", name, err)
	}
	h := fnv.New64a()
	_, _ = h.Write(b)

	ext := path.Ext(file)
	p = fmt.Sprintf("/%s.%016x%s", strings.TrimSuffix(file, ext), h.Sum64(), ext)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths[file] = p
	a.versioned[p] = file
	return p, nil
}

// serve writes the file behind a versioned path. It reports false for any
// other path.
func (a *assetVersions) serve(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	a.mu.RLock()
	file, ok := a.versioned[r.URL.Path]
	a.mu.RUnlock()
	if !ok {
		return false
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFileFS(w, r, a.fsys, file)
	return true
}

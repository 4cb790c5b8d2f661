package csml

import (
	"errors"
	"io/fs"
	"path"
	"strings"
)

// ErrModuleNotFound is returned by an Importer that has no module by the name.
var ErrModuleNotFound = errors.New("module not found")

// Importer resolves the markup source of a module included with
// include("name").
type Importer interface {
	Import(name string) (string, error)
}

// ImporterFunc adapts a function to the Importer interface.
type ImporterFunc func(name string) (string, error)

func (f ImporterFunc) Import(name string) (string, error) {
	return f(name)
}

// FSImporter loads modules from name.csml files. A name is looked up relative
// to Dir first, then in every directory of SearchPath.
type FSImporter struct {
	FS         fs.FS
	Dir        string
	SearchPath []string
}

func (i *FSImporter) Import(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") {
		return "", ErrModuleNotFound
	}
	file := strings.TrimPrefix(name, "/") + ".csml"
	dirs := append([]string{i.Dir}, i.SearchPath...)
	for _, dir := range dirs {
		if dir == "" {
			dir = "."
		}
		b, err := fs.ReadFile(i.FS, path.Join(dir, file))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", ErrModuleNotFound
}

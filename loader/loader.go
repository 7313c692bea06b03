// Package loader reads template sources from a filesystem and tracks the
// reference graph between templates so cycles surface as errors instead of
// unbounded recursion.
package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FileSystemLoader resolves template references against a set of search
// directories and caches loaded sources. It operates over an afero
// filesystem so callers can swap in an in-memory tree.
type FileSystemLoader struct {
	fs      afero.Fs
	dirs    []string
	sources map[string]string
}

// NewFileSystemLoader creates a loader searching the given directories in
// order. A nil fs uses the host filesystem.
func NewFileSystemLoader(fs afero.Fs, dirs ...string) *FileSystemLoader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileSystemLoader{
		fs:      fs,
		dirs:    dirs,
		sources: make(map[string]string),
	}
}

// Resolve maps a template reference to a loadable path. A relative
// reference is first tried against the directory of the referrer, then
// against each configured directory in order; other references go straight
// to the configured directories.
func (l *FileSystemLoader) Resolve(referrer, name string) (string, error) {
	var candidates []string
	if referrer != "" && !filepath.IsAbs(name) {
		candidates = append(candidates, filepath.Join(filepath.Dir(referrer), name))
	}
	for _, dir := range l.dirs {
		candidates = append(candidates, filepath.Join(dir, name))
	}

	for _, candidate := range candidates {
		ok, err := afero.Exists(l.fs, candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("template %q not found in %v", name, l.dirs)
}

// Load reads a template source, stripping a single trailing newline. The
// result is cached; all sources stay buffered for the duration of one
// compilation.
func (l *FileSystemLoader) Load(path string) (string, error) {
	if src, ok := l.sources[path]; ok {
		return src, nil
	}
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return "", fmt.Errorf("cannot read template %s: %w", path, err)
	}
	src := strings.TrimSuffix(string(data), "\n")
	l.sources[path] = src
	return src, nil
}

// SetSource seeds the cache with an in-memory source, used for templates
// defined inline rather than on disk.
func (l *FileSystemLoader) SetSource(path, source string) {
	l.sources[path] = strings.TrimSuffix(source, "\n")
}

// Source returns a previously loaded source.
func (l *FileSystemLoader) Source(path string) (string, bool) {
	src, ok := l.sources[path]
	return src, ok
}

// Paths lists every loaded template path.
func (l *FileSystemLoader) Paths() []string {
	paths := make([]string, 0, len(l.sources))
	for path := range l.sources {
		paths = append(paths, path)
	}
	return paths
}

// Graph records referrer-to-referee edges between templates and rejects
// any edge that would close a cycle, so the dependency walk always
// terminates with a diagnostic instead of recursing forever.
type Graph struct {
	out   map[string][]string
	count int
}

func NewGraph() *Graph {
	return &Graph{out: make(map[string][]string)}
}

// AddEdge records one reference. It fails with a cycle diagnostic when the
// referee already reaches the referrer.
func (g *Graph) AddEdge(from, to string) error {
	if from == to || g.reaches(to, from, map[string]bool{}) {
		return fmt.Errorf("cyclic dependency between %s and %s", from, to)
	}
	g.out[from] = append(g.out[from], to)
	g.count++
	return nil
}

func (g *Graph) reaches(from, target string, seen map[string]bool) bool {
	if seen[from] {
		return false
	}
	seen[from] = true
	for _, next := range g.out[from] {
		if next == target || g.reaches(next, target, seen) {
			return true
		}
	}
	return false
}

// Len returns the number of recorded edges.
func (g *Graph) Len() int {
	return g.count
}

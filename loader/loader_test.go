package loader

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func TestResolveOrder(t *testing.T) {
	fs := memFs(t, map[string]string{
		"templates/shared/part.html": "from shared",
		"templates/pages/part.html":  "from pages",
		"templates/pages/page.html":  "root",
	})
	ld := NewFileSystemLoader(fs, "templates/shared")

	tests := []struct {
		name     string
		referrer string
		ref      string
		want     string
	}{
		{"referrer directory wins", "templates/pages/page.html", "part.html", "templates/pages/part.html"},
		{"falls back to configured dirs", "elsewhere/x.html", "part.html", "templates/shared/part.html"},
		{"no referrer", "", "part.html", "templates/shared/part.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ld.Resolve(tt.referrer, tt.ref)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	ld := NewFileSystemLoader(afero.NewMemMapFs(), "templates")
	_, err := ld.Resolve("", "missing.html")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadStripsTrailingNewline(t *testing.T) {
	fs := memFs(t, map[string]string{
		"t/a.html": "hello\n",
		"t/b.html": "hello\n\n",
	})
	ld := NewFileSystemLoader(fs, "t")

	src, err := ld.Load("t/a.html")
	if err != nil {
		t.Fatal(err)
	}
	if src != "hello" {
		t.Errorf("single trailing newline must be stripped, got %q", src)
	}

	src, _ = ld.Load("t/b.html")
	if src != "hello\n" {
		t.Errorf("only one trailing newline is stripped, got %q", src)
	}
}

func TestLoadCaches(t *testing.T) {
	fs := memFs(t, map[string]string{"t/a.html": "one"})
	ld := NewFileSystemLoader(fs, "t")
	if _, err := ld.Load("t/a.html"); err != nil {
		t.Fatal(err)
	}
	// mutate the underlying file; the cached source must win
	afero.WriteFile(fs, "t/a.html", []byte("two"), 0o644)
	src, _ := ld.Load("t/a.html")
	if src != "one" {
		t.Errorf("expected the cached source, got %q", src)
	}
	if _, ok := ld.Source("t/a.html"); !ok {
		t.Error("Source must report cached templates")
	}
}

func TestGraphCycleDetection(t *testing.T) {
	g := NewGraph()
	mustAdd := func(from, to string) {
		t.Helper()
		if err := g.AddEdge(from, to); err != nil {
			t.Fatalf("AddEdge(%s, %s): %v", from, to, err)
		}
	}

	mustAdd("a", "b")
	mustAdd("b", "c")
	if err := g.AddEdge("c", "a"); err == nil {
		t.Error("expected a cycle diagnostic for c -> a")
	}
	if err := g.AddEdge("a", "a"); err == nil {
		t.Error("expected a cycle diagnostic for a self reference")
	}
}

func TestGraphDiamondIsAcyclic(t *testing.T) {
	g := NewGraph()
	for _, e := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}} {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("diamond edge %v rejected: %v", e, err)
		}
	}
	if g.Len() != 4 {
		t.Errorf("len = %d, want 4", g.Len())
	}
}

package node_test

import (
	"sort"
	"testing"

	"github.com/docvault/docfs/internal/node"
	"github.com/docvault/docfs/internal/types"
)

func TestResolveRoot(t *testing.T) {
	env := setupTree(t)

	for _, path := range []string{"", "/", "//"} {
		n, err := node.Resolve(env.ctx, path)
		if err != nil {
			t.Fatalf("Failed to resolve %q: %v", path, err)
		}
		if n.Kind != node.KindDatabase {
			t.Errorf("Expected %q to resolve to the root, got %s", path, n.Kind)
		}
	}
}

func TestResolveKinds(t *testing.T) {
	env := setupTree(t)

	cases := map[string]node.Kind{
		"/docs":                      node.KindDirectory,
		"/docs/reports":              node.KindDirectory,
		"/docs/readme.txt":           node.KindFile,
		"/root.txt":                  node.KindFile,
		"/projects":                  node.KindResourceDir,
		"/projects/Alpha":            node.KindResourceObj,
		"/projects/Beta__Gamma":      node.KindResourceObj,
		"/projects/Alpha/notes.txt":  node.KindFile,
		"/projects/Alpha/summary.txt": node.KindContent,
		// Empty segments collapse.
		"//docs///reports": node.KindDirectory,
	}
	for path, kind := range cases {
		n := mustResolve(t, env, path)
		if n.Kind != kind {
			t.Errorf("Expected %q to be %s, got %s", path, kind, n.Kind)
		}
	}
}

func TestResolveNotFound(t *testing.T) {
	env := setupTree(t)

	for _, path := range []string{"/nope", "/docs/nope", "/projects/Alpha/nope", "/docs/readme.txt/deeper"} {
		_, err := node.Resolve(env.ctx, path)
		if !types.IsKind(err, types.KindNotFound) {
			t.Errorf("Expected not_found for %q, got %v", path, err)
		}
	}
}

func TestResolvePathComponents(t *testing.T) {
	env := setupTree(t)

	n := mustResolve(t, env, "/projects/Alpha/notes.txt")
	want := []string{"projects", "Alpha", "notes.txt"}
	got := n.FullPath()
	if len(got) != len(want) {
		t.Fatalf("Expected path %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected component %d to be %q, got %q", i, want[i], got[i])
		}
	}
	if node.JoinPath(got) != "/projects/Alpha/notes.txt" {
		t.Errorf("Unexpected joined path %q", node.JoinPath(got))
	}
}

func TestListChildren(t *testing.T) {
	env := setupTree(t)

	// The root lists itself.
	paths, err := node.ListChildren(env.ctx, "/")
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "/" {
		t.Errorf("Expected the root to list itself, got %v", paths)
	}

	paths, err = node.ListChildren(env.ctx, "/docs")
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	sort.Strings(paths)
	want := []string{"/docs/readme.txt", "/docs/reports"}
	if len(paths) != len(want) {
		t.Fatalf("Expected %v, got %v", want, paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("Expected %q, got %q", want[i], paths[i])
		}
	}

	if _, err := node.ListChildren(env.ctx, "/nope"); !types.IsKind(err, types.KindNotFound) {
		t.Errorf("Expected not_found, got %v", err)
	}
}

func TestSplitJoinPath(t *testing.T) {
	parts := node.SplitPath("/a//b/c/")
	if len(parts) != 3 || parts[0] != "a" || parts[2] != "c" {
		t.Errorf("Unexpected split result %v", parts)
	}
	if got := node.JoinPath(parts); got != "/a/b/c" {
		t.Errorf("Expected /a/b/c, got %q", got)
	}
	if got := node.JoinPath(nil); got != "/" {
		t.Errorf("Expected /, got %q", got)
	}
}

package node

import (
	"strings"

	"github.com/docvault/docfs/internal/types"
)

// Separator is the path separator presented to clients.
const Separator = "/"

// Resolve walks a slash-separated path from the database root and
// returns the final node. Empty segments are discarded; "/" resolves
// to the root itself.
func Resolve(ctx *Context, path string) (*Node, error) {
	current := Root(ctx)
	for _, name := range SplitPath(path) {
		child, err := current.Child(name)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, types.NotFound("path %q does not resolve at %q", path, name)
		}
		current = child
	}
	return current, nil
}

// ListChildren resolves a path and returns the full paths of the
// node's children. Resolving the root yields the root path itself.
func ListChildren(ctx *Context, path string) ([]string, error) {
	n, err := Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if n.Kind == KindDatabase {
		return []string{Separator}, nil
	}
	children, err := n.Children()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(children))
	for _, c := range children {
		paths = append(paths, JoinPath(c.FullPath()))
	}
	return paths, nil
}

// SplitPath tokenizes a client path, discarding empty segments.
func SplitPath(path string) []string {
	parts := strings.Split(path, Separator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinPath renders name components as an absolute client path.
func JoinPath(components []string) string {
	return Separator + strings.Join(components, Separator)
}

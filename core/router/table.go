package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/searchktools/tiny-server/core/http"
)

var (
	// ErrRouteNotFound means no handler exists for the path under any method
	ErrRouteNotFound = errors.New("route not found")

	// ErrMethodNotAllowed is matched by *MethodNotAllowedError
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// MethodNotAllowedError means the path exists but not for the method
type MethodNotAllowedError struct {
	Path    http.Path
	Method  http.Method
	Allowed []http.Method
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method '%s' is not allowed for %s", e.Method, e.Path)
}

func (e *MethodNotAllowedError) Is(target error) bool {
	return target == ErrMethodNotAllowed
}

// Allow renders the methods of a MethodNotAllowedError for an Allow header
func (e *MethodNotAllowedError) Allow() string {
	names := make([]string, len(e.Allowed))
	for i, m := range e.Allowed {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// Table maps exact segment sequences to per-method handlers.
//
// There are no wildcards and no prefix matches: a path of n segments only
// ever resolves at depth n. Registering the same (path, method) twice keeps
// the latest handler. A Table is not safe for concurrent Register calls;
// Dispatch may run concurrently once registration has stopped.
type Table[H any] struct {
	root *node[H]
}

type node[H any] struct {
	children map[string]*node[H]
	methods  map[http.Method]H
}

// Route is one registered (path, method) pair
type Route struct {
	Path   http.Path
	Method http.Method
}

// NewTable creates an empty dispatch table
func NewTable[H any]() *Table[H] {
	return &Table[H]{root: &node[H]{}}
}

// Register stores h under (path, method), overwriting any earlier handler
func (t *Table[H]) Register(path http.Path, method http.Method, h H) {
	n := t.root
	for _, seg := range path.Segments() {
		if n.children == nil {
			n.children = make(map[string]*node[H])
		}
		child, ok := n.children[seg]
		if !ok {
			child = &node[H]{}
			n.children[seg] = child
		}
		n = child
	}
	if n.methods == nil {
		n.methods = make(map[http.Method]H)
	}
	n.methods[method] = h
}

// Dispatch resolves (path, method).
// It fails with ErrRouteNotFound or a *MethodNotAllowedError.
func (t *Table[H]) Dispatch(path http.Path, method http.Method) (H, error) {
	var zero H

	n := t.root
	for i := 0; i < path.Len(); i++ {
		child, ok := n.children[path.Segment(i)]
		if !ok {
			return zero, ErrRouteNotFound
		}
		n = child
	}
	if len(n.methods) == 0 {
		return zero, ErrRouteNotFound
	}

	h, ok := n.methods[method]
	if !ok {
		return zero, &MethodNotAllowedError{
			Path:    path,
			Method:  method,
			Allowed: sortedMethods(n.methods),
		}
	}
	return h, nil
}

// Routes lists every registered pair ordered by path, then method
func (t *Table[H]) Routes() []Route {
	var routes []Route
	var walk func(n *node[H], segments []string)
	walk = func(n *node[H], segments []string) {
		for _, m := range sortedMethods(n.methods) {
			routes = append(routes, Route{Path: http.NewPath(segments...), Method: m})
		}
		keys := make([]string, 0, len(n.children))
		for k := range n.children {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(n.children[k], append(segments[:len(segments):len(segments)], k))
		}
	}
	walk(t.root, nil)
	return routes
}

func sortedMethods[H any](methods map[http.Method]H) []http.Method {
	out := make([]http.Method, 0, len(methods))
	for m := range methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

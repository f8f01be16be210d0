package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/tiny-server/core/http"
)

func path(raw string) http.Path {
	return http.MustParsePath(raw)
}

// TestTableBasic tests exact static routing
func TestTableBasic(t *testing.T) {
	table := NewTable[string]()
	table.Register(path("/"), http.MethodGet, "root")
	table.Register(path("/hello"), http.MethodGet, "hello")
	table.Register(path("/hello/world"), http.MethodGet, "world")

	tests := []struct {
		path string
		want string
		err  error
	}{
		{"/", "root", nil},
		{"/hello", "hello", nil},
		{"/hello/", "hello", nil},
		{"/hello/world", "world", nil},
		{"/notfound", "", ErrRouteNotFound},
		{"/hello/world/again", "", ErrRouteNotFound},
	}

	for _, tt := range tests {
		h, err := table.Dispatch(path(tt.path), http.MethodGet)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, h, tt.path)
	}
}

func TestTableOverwrite(t *testing.T) {
	table := NewTable[int]()
	table.Register(path("/echo"), http.MethodPost, 1)
	table.Register(path("/echo"), http.MethodPost, 2)

	h, err := table.Dispatch(path("/echo"), http.MethodPost)
	require.NoError(t, err)
	assert.Equal(t, 2, h)
}

func TestTableSegmentCount(t *testing.T) {
	table := NewTable[string]()
	table.Register(path("/a"), http.MethodGet, "a")
	table.Register(path("/x/y/z"), http.MethodGet, "xyz")

	_, err := table.Dispatch(path("/a/b"), http.MethodGet)
	assert.ErrorIs(t, err, ErrRouteNotFound)

	// intermediate nodes carry no handlers
	_, err = table.Dispatch(path("/x/y"), http.MethodGet)
	assert.ErrorIs(t, err, ErrRouteNotFound)
	_, err = table.Dispatch(path("/x"), http.MethodGet)
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestTableMethodNotAllowed(t *testing.T) {
	table := NewTable[string]()
	table.Register(path("/echo"), http.MethodPost, "echo")
	table.Register(path("/echo"), http.MethodPut, "echo")

	_, err := table.Dispatch(path("/echo"), http.MethodGet)
	assert.ErrorIs(t, err, ErrMethodNotAllowed)
	assert.NotErrorIs(t, err, ErrRouteNotFound)

	var mna *MethodNotAllowedError
	require.True(t, errors.As(err, &mna))
	assert.Equal(t, "/echo", mna.Path.String())
	assert.Equal(t, []http.Method{http.MethodPost, http.MethodPut}, mna.Allowed)
	assert.Equal(t, "POST, PUT", mna.Allow())
}

func TestTableEveryUnregisteredMethod(t *testing.T) {
	table := NewTable[string]()
	table.Register(path("/only/get"), http.MethodGet, "g")

	for _, m := range []http.Method{
		http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete,
		http.MethodConnect, http.MethodOptions, http.MethodTrace, http.MethodPatch,
	} {
		_, err := table.Dispatch(path("/only/get"), m)
		assert.ErrorIs(t, err, ErrMethodNotAllowed, string(m))
	}
}

func TestTableDecodedSegments(t *testing.T) {
	table := NewTable[string]()
	table.Register(http.NewPath("files", "a b"), http.MethodGet, "file")

	h, err := table.Dispatch(path("/files/a%20b"), http.MethodGet)
	require.NoError(t, err)
	assert.Equal(t, "file", h)
}

func TestTableRoutes(t *testing.T) {
	table := NewTable[string]()
	table.Register(path("/b"), http.MethodPost, "")
	table.Register(path("/a/c"), http.MethodGet, "")
	table.Register(path("/b"), http.MethodGet, "")

	var got []string
	for _, r := range table.Routes() {
		got = append(got, string(r.Method)+" "+r.Path.String())
	}
	assert.Equal(t, []string{"GET /a/c", "GET /b", "POST /b"}, got)
}

// Benchmarks
func BenchmarkTableDispatch(b *testing.B) {
	table := NewTable[int]()
	table.Register(path("/hello/world"), http.MethodGet, 1)
	p := path("/hello/world")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		table.Dispatch(p, http.MethodGet)
	}
}

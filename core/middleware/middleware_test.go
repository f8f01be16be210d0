package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/tiny-server/core/http"
)

func ok(body string) Handler {
	return func(*http.Request) (*http.Response, error) {
		return http.NewResponse(http.StatusOK, http.Headers{}, []byte(body)), nil
	}
}

func request(headers http.Headers) *http.Request {
	return http.NewRequest(http.MethodGet, http.MustParsePath("/"), headers, http.Query{}, nil)
}

func TestPipelineOrder(t *testing.T) {
	var order []int
	trace := func(n int) Middleware {
		return func(next Handler) Handler {
			return func(req *http.Request) (*http.Response, error) {
				order = append(order, n)
				return next(req)
			}
		}
	}

	h := NewPipeline(trace(1), trace(2)).Use(trace(3)).Then(ok("done"))
	res, err := h(request(http.Headers{}))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, "done", string(res.Body()))
}

func TestPipelineEmpty(t *testing.T) {
	p := NewPipeline(nil)
	assert.Equal(t, 0, p.Len())

	res, err := p.Then(ok("x"))(request(http.Headers{}))
	require.NoError(t, err)
	assert.Equal(t, "x", string(res.Body()))
}

func TestSetHeaders(t *testing.T) {
	h := NewPipeline(SetHeaders("Server", "tiny-server")).Then(ok("hi"))

	res, err := h(request(http.Headers{}))
	require.NoError(t, err)
	server, found := res.Header("server")
	assert.True(t, found)
	assert.Equal(t, "tiny-server", server)
	assert.Equal(t, "hi", string(res.Body()))
}

func TestCORS(t *testing.T) {
	h := NewPipeline(CORS("*", http.MethodGet)).Then(ok(""))

	res, err := h(request(http.Headers{}))
	require.NoError(t, err)
	origin, _ := res.Header("Access-Control-Allow-Origin")
	methods, _ := res.Header("Access-Control-Allow-Methods")
	assert.Equal(t, "*", origin)
	assert.Equal(t, "GET", methods)
}

func TestRequireHeaderAborts(t *testing.T) {
	called := false
	final := func(*http.Request) (*http.Response, error) {
		called = true
		return http.NewResponse(http.StatusOK, http.Headers{}, nil), nil
	}
	h := NewPipeline(RequireHeader("x_api_key")).Then(final)

	_, err := h(request(http.Headers{}))
	var httpErr *http.Error
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Equal(t, "missing X-Api-Key header", httpErr.Message())
	assert.False(t, called)

	_, err = h(request(http.NewHeaders("X-Api-Key", "k")))
	require.NoError(t, err)
	assert.True(t, called)
}

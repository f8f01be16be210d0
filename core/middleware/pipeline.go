package middleware

import (
	"strings"

	"github.com/searchktools/tiny-server/core/http"
)

// Handler produces the response for a dispatched request
type Handler func(req *http.Request) (*http.Response, error)

// Middleware wraps a handler. It may answer on its own by not calling next.
type Middleware func(next Handler) Handler

// Pipeline is an ordered middleware chain; the first added runs outermost
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a new middleware pipeline
func NewPipeline(mws ...Middleware) *Pipeline {
	p := &Pipeline{}
	for _, m := range mws {
		p.Use(m)
	}
	return p
}

// Use adds a middleware to the pipeline
func (p *Pipeline) Use(m Middleware) *Pipeline {
	if m != nil {
		p.middlewares = append(p.middlewares, m)
	}
	return p
}

// Len is the number of middlewares
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// Then wraps final with every middleware
func (p *Pipeline) Then(final Handler) Handler {
	h := final
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		h = p.middlewares[i](h)
	}
	return h
}

// withHeaders copies res with extra headers set
func withHeaders(res *http.Response, pairs ...string) *http.Response {
	h := res.Headers()
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return http.NewResponse(res.Status(), h, res.Body())
}

// SetHeaders adds fixed name/value pairs to every successful response
func SetHeaders(pairs ...string) Middleware {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			res, err := next(req)
			if err != nil {
				return nil, err
			}
			return withHeaders(res, pairs...), nil
		}
	}
}

// CORS marks successful responses as readable from origin
func CORS(origin string, methods ...http.Method) Middleware {
	if len(methods) == 0 {
		methods = []http.Method{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	}
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	allow := strings.Join(names, ", ")

	return SetHeaders(
		"Access-Control-Allow-Origin", origin,
		"Access-Control-Allow-Methods", allow,
		"Access-Control-Allow-Headers", "Content-Type, Authorization",
	)
}

// RequireHeader answers 401 unless the request carries name
func RequireHeader(name string) Middleware {
	return func(next Handler) Handler {
		return func(req *http.Request) (*http.Response, error) {
			if _, ok := req.Header(name); !ok {
				return nil, http.NewError(http.StatusUnauthorized, "missing "+http.CanonicalName(name)+" header")
			}
			return next(req)
		}
	}
}

package http

// Method is a standard HTTP request method
type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodConnect Method = "CONNECT"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodPatch   Method = "PATCH"
)

var methods = map[string]Method{
	"GET":     MethodGet,
	"HEAD":    MethodHead,
	"POST":    MethodPost,
	"PUT":     MethodPut,
	"DELETE":  MethodDelete,
	"CONNECT": MethodConnect,
	"OPTIONS": MethodOptions,
	"TRACE":   MethodTrace,
	"PATCH":   MethodPatch,
}

// ParseMethod accepts exactly one of the standard verbs, case-sensitive
func ParseMethod(s string) (Method, error) {
	m, ok := methods[s]
	if !ok {
		return "", &InvalidMethodError{Method: s}
	}
	return m, nil
}

// Valid reports whether m is a standard verb
func (m Method) Valid() bool {
	_, ok := methods[string(m)]
	return ok
}

package http

// Request is a parsed HTTP/1.1 request. It is not modified after construction.
type Request struct {
	method  Method
	path    Path
	headers Headers
	query   Query
	body    []byte
}

// NewRequest assembles a request from its parts
func NewRequest(method Method, path Path, headers Headers, query Query, body []byte) *Request {
	if body == nil {
		body = []byte{}
	}
	return &Request{
		method:  method,
		path:    path,
		headers: headers,
		query:   query,
		body:    body,
	}
}

func (r *Request) Method() Method {
	return r.method
}

func (r *Request) Path() Path {
	return r.path
}

// Headers returns a copy of the header multimap
func (r *Request) Headers() Headers {
	return r.headers.Clone()
}

// Header looks a header up case-insensitively
func (r *Request) Header(name string) (string, bool) {
	return r.headers.Get(name)
}

// Query returns a copy of the query multimap
func (r *Request) Query() Query {
	return r.query.Clone()
}

// QueryValue looks a query parameter up by exact name
func (r *Request) QueryValue(name string) (string, bool) {
	return r.query.Get(name)
}

// Body is the raw body. Callers must not modify it.
func (r *Request) Body() []byte {
	return r.body
}

// Bytes encodes the request onto the wire format accepted by ParseRequest
func (r *Request) Bytes() []byte {
	buf := make([]byte, 0, 128+len(r.body))
	buf = append(buf, r.method...)
	buf = append(buf, ' ')
	buf = append(buf, r.path.Escaped()...)
	if r.query.Len() > 0 {
		buf = append(buf, '?')
		buf = append(buf, r.query.String()...)
	}
	buf = append(buf, ' ')
	buf = append(buf, Version...)
	buf = append(buf, "\r\n"...)
	buf = r.headers.appendWire(buf)
	buf = append(buf, "\r\n"...)
	return append(buf, r.body...)
}

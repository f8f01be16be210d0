package http

import (
	"bytes"
	"strconv"
	"strings"
)

// Response is an HTTP/1.1 response. It is not modified after construction.
type Response struct {
	status  Status
	headers Headers
	body    []byte
}

// NewResponse assembles a response from its parts
func NewResponse(status Status, headers Headers, body []byte) *Response {
	if body == nil {
		body = []byte{}
	}
	return &Response{
		status:  status,
		headers: headers,
		body:    body,
	}
}

// Redirect answers with a Location built from path and query
func Redirect(status Status, to Path, query Query) *Response {
	location := to.Escaped()
	if query.Len() > 0 {
		location += "?" + query.String()
	}
	return NewResponse(status, NewHeaders("Location", location), nil)
}

func (r *Response) Status() Status {
	return r.status
}

// Headers returns a copy of the header multimap
func (r *Response) Headers() Headers {
	return r.headers.Clone()
}

// Header looks a header up case-insensitively
func (r *Response) Header(name string) (string, bool) {
	return r.headers.Get(name)
}

// Body is the raw body. Callers must not modify it.
func (r *Response) Body() []byte {
	return r.body
}

// Bytes encodes the response:
// "HTTP/1.1 <code> <reason>\r\n" (Header: value\r\n)* "\r\n" <body>
func (r *Response) Bytes() []byte {
	buf := make([]byte, 0, 64+len(r.body))
	buf = append(buf, Version...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(r.status), 10)
	buf = append(buf, ' ')
	buf = append(buf, r.status.Reason()...)
	buf = append(buf, "\r\n"...)
	buf = r.headers.appendWire(buf)
	buf = append(buf, "\r\n"...)
	return append(buf, r.body...)
}

// ParseResponse parses the output of Response.Bytes
func ParseResponse(raw []byte) (*Response, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyRequest
	}

	head, body := raw, []byte(nil)
	if end := bytes.Index(raw, headerEnd); end >= 0 {
		head, body = raw[:end], raw[end+len(headerEnd):]
	}
	lines := splitLines(head)

	version, rest, ok := strings.Cut(lines[0], " ")
	if !ok || version != Version {
		return nil, ErrMalformedRequest
	}
	codeRaw, _, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(codeRaw)
	if err != nil {
		return nil, ErrMalformedRequest
	}

	headers, err := parseHeaders(lines[1:])
	if err != nil {
		return nil, err
	}
	return NewResponse(Status(code), headers, append([]byte{}, body...)), nil
}

package http

import (
	"bytes"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Version is the only protocol version the server speaks
const Version = "HTTP/1.1"

var headerEnd = []byte("\r\n\r\n")

// ParseRequest parses raw request bytes.
//
// Everything after the first blank line is the body; a request without a
// blank line has an empty body. Transport-level failures match
// ErrInvalidRequest; an unsupported protocol version is returned as a 505 *Error.
func ParseRequest(raw []byte) (*Request, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyRequest
	}

	head, body := raw, []byte(nil)
	if end := bytes.Index(raw, headerEnd); end >= 0 {
		head, body = raw[:end], raw[end+len(headerEnd):]
	}

	lines := splitLines(head)

	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) != 3 {
		return nil, ErrMalformedRequest
	}
	methodRaw, target, version := parts[0], parts[1], parts[2]

	if version != Version {
		return nil, NewError(StatusHTTPVersionNotSupported, "unsupported HTTP version: "+version)
	}

	pathRaw, queryRaw, _ := strings.Cut(target, "?")
	path, err := ParsePath(pathRaw)
	if err != nil {
		return nil, err
	}

	method, err := ParseMethod(methodRaw)
	if err != nil {
		return nil, err
	}

	headers, err := parseHeaders(lines[1:])
	if err != nil {
		return nil, err
	}

	return NewRequest(method, path, headers, ParseQuery(queryRaw), append([]byte{}, body...)), nil
}

func parseHeaders(lines []string) (Headers, error) {
	var h Headers
	for _, line := range lines {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return Headers{}, ErrMalformedRequest
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return Headers{}, ErrMalformedRequest
		}
		h.Add(name, value)
	}
	return h, nil
}

// splitLines splits on '\n' and drops a trailing '\r' from every line
func splitLines(data []byte) []string {
	raw := bytes.Split(data, []byte{'\n'})
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(bytes.TrimSuffix(l, []byte{'\r'}))
	}
	return lines
}

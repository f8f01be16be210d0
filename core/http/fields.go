package http

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// fields is an insertion-ordered multimap
type fields struct {
	names  []string
	values map[string][]string
}

func (f *fields) add(name, value string) {
	if f.values == nil {
		f.values = make(map[string][]string)
	}
	if _, ok := f.values[name]; !ok {
		f.names = append(f.names, name)
	}
	f.values[name] = append(f.values[name], value)
}

func (f *fields) set(name, value string) {
	if f.values == nil {
		f.values = make(map[string][]string)
	}
	if _, ok := f.values[name]; !ok {
		f.names = append(f.names, name)
	}
	f.values[name] = []string{value}
}

// get returns the last value, so a repeated name behaves like an overwrite
func (f fields) get(name string) (string, bool) {
	vs := f.values[name]
	if len(vs) == 0 {
		return "", false
	}
	return vs[len(vs)-1], true
}

func (f fields) all(name string) []string {
	return append([]string(nil), f.values[name]...)
}

func (f fields) each(fn func(name, value string)) {
	for _, name := range f.names {
		for _, v := range f.values[name] {
			fn(name, v)
		}
	}
}

func (f fields) clone() fields {
	c := fields{names: append([]string(nil), f.names...)}
	if f.values != nil {
		c.values = make(map[string][]string, len(f.values))
		for k, vs := range f.values {
			c.values[k] = append([]string(nil), vs...)
		}
	}
	return c
}

// Headers is a case-insensitive header multimap.
// Names are stored lower-case with '_' mapped to '-'.
type Headers struct {
	f fields
}

// NewHeaders builds headers from name/value pairs
func NewHeaders(pairs ...string) Headers {
	var h Headers
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return h
}

// Add appends a value under name
func (h *Headers) Add(name, value string) {
	h.f.add(NormalizeName(name), value)
}

// Set replaces every value under name
func (h *Headers) Set(name, value string) {
	h.f.set(NormalizeName(name), value)
}

// Get returns the last value under name
func (h Headers) Get(name string) (string, bool) {
	return h.f.get(NormalizeName(name))
}

// Values returns every value under name
func (h Headers) Values(name string) []string {
	return h.f.all(NormalizeName(name))
}

// Has reports whether name is present
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Len is the number of distinct names
func (h Headers) Len() int {
	return len(h.f.names)
}

// Each calls fn for every value in insertion order, with normalized names
func (h Headers) Each(fn func(name, value string)) {
	h.f.each(fn)
}

// Clone returns a deep copy
func (h Headers) Clone() Headers {
	return Headers{f: h.f.clone()}
}

func (h Headers) appendWire(buf []byte) []byte {
	h.f.each(func(name, value string) {
		buf = append(buf, CanonicalName(name)...)
		buf = append(buf, ": "...)
		buf = append(buf, value...)
		buf = append(buf, "\r\n"...)
	})
	return buf
}

// NormalizeName is the lookup form of a header name
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

var titlers = sync.Pool{
	New: func() any {
		return cases.Title(language.Und)
	},
}

// CanonicalName renders a header name as Title-Case-With-Hyphens
func CanonicalName(name string) string {
	c := titlers.Get().(cases.Caser)
	defer titlers.Put(c)

	parts := strings.Split(NormalizeName(name), "-")
	for i, p := range parts {
		parts[i] = c.String(p)
	}
	return strings.Join(parts, "-")
}

// Query is an insertion-ordered query-string multimap. Names are exact.
type Query struct {
	f fields
}

// NewQuery builds a query from name/value pairs
func NewQuery(pairs ...string) Query {
	var q Query
	for i := 0; i+1 < len(pairs); i += 2 {
		q.Add(pairs[i], pairs[i+1])
	}
	return q
}

// ParseQuery splits a raw query string. Values are not percent-decoded and
// pairs with an empty name are skipped.
func ParseQuery(raw string) Query {
	var q Query
	for _, pair := range strings.Split(strings.TrimPrefix(raw, "&"), "&") {
		name, value, _ := strings.Cut(pair, "=")
		if name == "" {
			continue
		}
		q.Add(name, value)
	}
	return q
}

// Add appends a value under name
func (q *Query) Add(name, value string) {
	q.f.add(name, value)
}

// Set replaces every value under name
func (q *Query) Set(name, value string) {
	q.f.set(name, value)
}

// Get returns the last value under name
func (q Query) Get(name string) (string, bool) {
	return q.f.get(name)
}

// Values returns every value under name
func (q Query) Values(name string) []string {
	return q.f.all(name)
}

// Len is the number of distinct names
func (q Query) Len() int {
	return len(q.f.names)
}

// Each calls fn for every value in insertion order
func (q Query) Each(fn func(name, value string)) {
	q.f.each(fn)
}

// Clone returns a deep copy
func (q Query) Clone() Query {
	return Query{f: q.f.clone()}
}

// String percent-encodes names and values and joins them with '&'
func (q Query) String() string {
	var b strings.Builder
	q.f.each(func(name, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(PercentEncode(name))
		b.WriteByte('=')
		b.WriteString(PercentEncode(value))
	})
	return b.String()
}

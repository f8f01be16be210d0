package http

import "strings"

const (
	reservedChars   = ":/?#[]@!$&'()*+,;="
	unreservedChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
	upperHex        = "0123456789ABCDEF"
)

var (
	pathChar       [256]bool
	unreservedChar [256]bool
)

func init() {
	for i := 0; i < len(unreservedChars); i++ {
		unreservedChar[unreservedChars[i]] = true
		pathChar[unreservedChars[i]] = true
	}
	for i := 0; i < len(reservedChars); i++ {
		pathChar[reservedChars[i]] = true
	}
	pathChar['%'] = true
}

// Path is a decoded, slash-separated request path.
//
// Exactly one leading and one trailing slash are stripped before splitting,
// so "/" is a single empty segment and "/a/b/" is ["a", "b"].
type Path struct {
	segments []string
}

// ParsePath validates raw and decomposes it into percent-decoded segments
func ParsePath(raw string) (Path, error) {
	if !strings.HasPrefix(raw, "/") {
		return Path{}, &InvalidPathError{Path: raw}
	}
	for i := 0; i < len(raw); i++ {
		if !pathChar[raw[i]] {
			return Path{}, &InvalidPathError{Path: raw}
		}
	}

	trimmed := strings.TrimSuffix(strings.TrimPrefix(raw, "/"), "/")
	segments := strings.Split(trimmed, "/")
	for i, seg := range segments {
		if strings.IndexByte(seg, '%') >= 0 {
			segments[i] = PercentDecode(seg)
		}
	}
	return Path{segments: segments}, nil
}

// MustParsePath is ParsePath for literals known to be valid
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPath builds a path from already decoded segments
func NewPath(segments ...string) Path {
	if len(segments) == 0 {
		segments = []string{""}
	}
	return Path{segments: append([]string(nil), segments...)}
}

// Segments returns a copy of the decoded segments
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Len is the number of segments
func (p Path) Len() int {
	return len(p.segments)
}

// Segment returns the i-th decoded segment
func (p Path) Segment(i int) string {
	return p.segments[i]
}

func (p Path) String() string {
	return "/" + strings.Join(p.segments, "/")
}

// Escaped renders the path with every segment percent-encoded
func (p Path) Escaped() string {
	var b strings.Builder
	for _, seg := range p.segments {
		b.WriteByte('/')
		b.WriteString(PercentEncode(seg))
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// PercentEncode escapes every byte outside the unreserved set as %XX
func PercentEncode(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreservedChar[s[i]] {
			n++
		}
	}
	if n == 0 {
		return s
	}

	buf := make([]byte, 0, len(s)+2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreservedChar[c] {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, '%', upperHex[c>>4], upperHex[c&15])
	}
	return string(buf)
}

// PercentDecode decodes %XX escapes. Malformed escapes are kept literally.
func PercentDecode(s string) string {
	if strings.IndexByte(s, '%') < 0 {
		return s
	}

	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if ok1 && ok2 {
				buf = append(buf, hi<<4|lo)
				i += 2
				continue
			}
		}
		buf = append(buf, s[i])
	}
	return string(buf)
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

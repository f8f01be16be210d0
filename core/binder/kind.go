package binder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"

	"github.com/searchktools/tiny-server/core/http"
)

// Kind is the declared element type of a Query, Header or Body parameter
type Kind uint8

const (
	// Int is parsed as a base-10 integer
	Int Kind = iota + 1
	// Str is passed through unchanged
	Str
	// Bool accepts "true" or "false", case-insensitively
	Bool
	// Bytes encodes the value as ASCII; any other character is rejected
	Bytes
	// Dict parses the value as a JSON object
	Dict
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Str:
		return "str"
	case Bool:
		return "bool"
	case Bytes:
		return "bytes"
	case Dict:
		return "dict"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) valid() bool {
	return k >= Int && k <= Dict
}

var errCoerce = errors.New("invalid value")

// coerce converts a raw string value to the Go value of kind.
// The literal "null" maps to nil for every kind.
func coerce(kind Kind, raw string) (any, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "null" {
		return nil, nil
	}

	switch kind {
	case Int:
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errCoerce
		}
		return n, nil
	case Str:
		return raw, nil
	case Bool:
		switch v {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, errCoerce
	case Bytes:
		for i := 0; i < len(raw); i++ {
			if raw[i] >= utf8.RuneSelf {
				return nil, errCoerce
			}
		}
		return []byte(raw), nil
	case Dict:
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
			return nil, errCoerce
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
}

// coerceBody is coerce for the raw request body; Bytes keeps the body as is
func coerceBody(kind Kind, body []byte) (any, error) {
	if kind == Bytes && !isNull(body) {
		return body, nil
	}
	return coerce(kind, string(body))
}

func isNull(b []byte) bool {
	return strings.EqualFold(strings.TrimSpace(string(b)), "null")
}

func invalidInput(name string, kind Kind) *http.Error {
	return http.NewError(http.StatusUnprocessableContent,
		fmt.Sprintf("invalid %s value for '%s'", kind, name))
}

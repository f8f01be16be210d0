package binder

import (
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
	"google.golang.org/protobuf/proto"

	"github.com/searchktools/tiny-server/core/http"
)

// Return is the declared return type of a handler; it picks the serializer
type Return uint8

const (
	// ReturnInt renders an integer as decimal ASCII
	ReturnInt Return = iota + 1
	// ReturnStr renders a string as UTF-8
	ReturnStr
	// ReturnBytes sends a byte slice unchanged
	ReturnBytes
	// ReturnJSON marshals maps, slices and structs to JSON
	ReturnJSON
	// ReturnProto marshals a proto.Message to the protobuf wire format
	ReturnProto
	// ReturnNone discards the value and sends an empty body
	ReturnNone
	// ReturnNever declares a handler that always fails with an *http.Error
	ReturnNever
	// ReturnRaw declares a handler that builds its own *http.Response
	ReturnRaw
)

func (r Return) String() string {
	switch r {
	case ReturnInt:
		return "int"
	case ReturnStr:
		return "str"
	case ReturnBytes:
		return "bytes"
	case ReturnJSON:
		return "json"
	case ReturnProto:
		return "proto"
	case ReturnNone:
		return "none"
	case ReturnNever:
		return "never"
	case ReturnRaw:
		return "raw"
	}
	return fmt.Sprintf("return(%d)", uint8(r))
}

type serializer func(v any) ([]byte, error)

// serializerFor is evaluated once at registration.
// ReturnNever and ReturnRaw have no serializer.
func serializerFor(r Return) (serializer, error) {
	switch r {
	case ReturnInt:
		return serializeInt, nil
	case ReturnStr:
		return serializeStr, nil
	case ReturnBytes:
		return serializeBytes, nil
	case ReturnJSON:
		return json.Marshal, nil
	case ReturnProto:
		return serializeProto, nil
	case ReturnNone:
		return func(any) ([]byte, error) { return []byte{}, nil }, nil
	case ReturnNever, ReturnRaw:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedReturn, r)
}

func serializeInt(v any) ([]byte, error) {
	switch n := v.(type) {
	case int:
		return strconv.AppendInt(nil, int64(n), 10), nil
	case int8:
		return strconv.AppendInt(nil, int64(n), 10), nil
	case int16:
		return strconv.AppendInt(nil, int64(n), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(n), 10), nil
	case int64:
		return strconv.AppendInt(nil, n, 10), nil
	case uint:
		return strconv.AppendUint(nil, uint64(n), 10), nil
	case uint8:
		return strconv.AppendUint(nil, uint64(n), 10), nil
	case uint16:
		return strconv.AppendUint(nil, uint64(n), 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(n), 10), nil
	case uint64:
		return strconv.AppendUint(nil, n, 10), nil
	}
	return nil, resultTypeError(ReturnInt, v)
}

func serializeStr(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, resultTypeError(ReturnStr, v)
	}
	return []byte(s), nil
}

func serializeBytes(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, resultTypeError(ReturnBytes, v)
	}
	return b, nil
}

func serializeProto(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, resultTypeError(ReturnProto, v)
	}
	return proto.Marshal(msg)
}

func rawResponse(v any) (*http.Response, error) {
	res, ok := v.(*http.Response)
	if !ok || res == nil {
		return nil, resultTypeError(ReturnRaw, v)
	}
	return res, nil
}

func resultTypeError(r Return, v any) error {
	return fmt.Errorf("%w: declared %s, got %T", ErrResultType, r, v)
}

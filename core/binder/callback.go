// Package binder turns plain handler functions into bound callbacks.
//
// A bound callback carries one Parameter descriptor per positional argument
// (query, header, body or dependency) and a serializer chosen from the
// declared Return. All inspection happens in New; Call only looks values up,
// coerces them and runs the handler.
package binder

import (
	"errors"
	"fmt"

	"github.com/searchktools/tiny-server/core/http"
)

// Registration errors. They are programming mistakes and should stop startup.
var (
	ErrNilHandler        = errors.New("handler is nil")
	ErrDuplicateBody     = errors.New("there can only be one body parameter")
	ErrUnsupportedKind   = errors.New("unsupported parameter kind")
	ErrUnsupportedReturn = errors.New("unsupported return type")
	ErrNilDependency     = errors.New("dependency is nil")
	ErrMissingName       = errors.New("parameter needs a name")
	ErrInvalidDefault    = errors.New("default does not match the parameter kind")
)

// Call-time programming errors. They surface as 500 responses.
var (
	ErrResultType   = errors.New("handler returned a value of the wrong type")
	ErrNeverReturns = errors.New("handler declared to never return came back without an error")
)

const missingInput = "missing required input"

// HandlerFunc receives its arguments positionally, in declaration order
type HandlerFunc func(args Args) (any, error)

// Hooks are run right before and right after the handler function itself
type Hooks struct {
	Before func()
	After  func()
}

// Callback is a handler with its binding and serialization metadata.
// It is immutable after New and safe for concurrent use.
type Callback struct {
	fn        HandlerFunc
	ret       Return
	params    []Parameter
	serialize serializer
}

// New validates the parameter list and picks the serializer for ret.
//
// Dependencies must be already constructed callbacks, so a dependency graph
// can never contain a cycle.
func New(fn HandlerFunc, ret Return, params ...Parameter) (*Callback, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}

	serialize, err := serializerFor(ret)
	if err != nil {
		return nil, err
	}

	hasBody := false
	for i, p := range params {
		switch p.role {
		case RoleBody:
			if hasBody {
				return nil, ErrDuplicateBody
			}
			hasBody = true
			if !p.kind.valid() {
				return nil, fmt.Errorf("%w: parameter %d has kind %s", ErrUnsupportedKind, i, p.kind)
			}
		case RoleQuery, RoleHeader:
			if p.name == "" {
				return nil, fmt.Errorf("%w: parameter %d", ErrMissingName, i)
			}
			if !p.kind.valid() {
				return nil, fmt.Errorf("%w: '%s' has kind %s", ErrUnsupportedKind, p.name, p.kind)
			}
			if p.hasDefault {
				if _, err := coerce(p.kind, p.def); err != nil {
					return nil, fmt.Errorf("%w: '%s' default %q is not %s", ErrInvalidDefault, p.name, p.def, p.kind)
				}
			}
		case RoleDependency:
			if p.dep == nil {
				return nil, fmt.Errorf("%w: parameter %d", ErrNilDependency, i)
			}
		default:
			return nil, fmt.Errorf("unknown role %d for parameter %d", p.role, i)
		}
	}

	return &Callback{
		fn:        fn,
		ret:       ret,
		params:    append([]Parameter(nil), params...),
		serialize: serialize,
	}, nil
}

// Must is New for registrations known to be valid
func Must(fn HandlerFunc, ret Return, params ...Parameter) *Callback {
	c, err := New(fn, ret, params...)
	if err != nil {
		panic(err)
	}
	return c
}

// Params returns a copy of the parameter descriptors
func (c *Callback) Params() []Parameter {
	return append([]Parameter(nil), c.params...)
}

// Returns is the declared return type
func (c *Callback) Returns() Return {
	return c.ret
}

// Call binds the arguments from req, runs the handler between the hooks and
// serializes the result into a 200 response. ReturnRaw handlers have their
// *http.Response returned unchanged.
//
// Binding failures are *http.Error values with status 422; handler errors
// are returned as they are.
func (c *Callback) Call(req *http.Request, hooks Hooks) (*http.Response, error) {
	args, err := c.bind(req)
	if err != nil {
		return nil, err
	}

	v, err := c.run(args, hooks)
	if err != nil {
		return nil, err
	}

	switch c.ret {
	case ReturnRaw:
		return rawResponse(v)
	case ReturnNever:
		return nil, ErrNeverReturns
	}

	body, err := c.serialize(v)
	if err != nil {
		return nil, err
	}
	return http.NewResponse(http.StatusOK, http.Headers{}, body), nil
}

func (c *Callback) run(args Args, hooks Hooks) (any, error) {
	if hooks.Before != nil {
		hooks.Before()
	}
	if hooks.After != nil {
		defer hooks.After()
	}
	return c.fn(args)
}

// resolve evaluates the callback as a dependency: its raw return value
func (c *Callback) resolve(req *http.Request) (any, error) {
	args, err := c.bind(req)
	if err != nil {
		return nil, err
	}
	return c.fn(args)
}

func (c *Callback) bind(req *http.Request) (Args, error) {
	raws := make([]string, len(c.params))

	// presence first, so dependencies never run for a call that cannot succeed
	for i, p := range c.params {
		var (
			v  string
			ok bool
		)
		switch p.role {
		case RoleQuery:
			v, ok = req.QueryValue(p.name)
		case RoleHeader:
			v, ok = req.Header(p.name)
		default:
			continue
		}
		if !ok {
			if !p.hasDefault {
				return nil, http.NewError(http.StatusUnprocessableContent, missingInput)
			}
			v = p.def
		}
		raws[i] = v
	}

	args := make(Args, len(c.params))
	for i, p := range c.params {
		if p.role != RoleDependency {
			continue
		}
		v, err := p.dep.resolve(req)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	for i, p := range c.params {
		var (
			v   any
			err error
		)
		switch p.role {
		case RoleDependency:
			continue
		case RoleBody:
			v, err = coerceBody(p.kind, req.Body())
		default:
			v, err = coerce(p.kind, raws[i])
		}
		if errors.Is(err, errCoerce) {
			return nil, invalidInput(p.name, p.kind)
		}
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

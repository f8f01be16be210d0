package main

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/searchktools/tiny-server/core"
	"github.com/searchktools/tiny-server/core/binder"
	"github.com/searchktools/tiny-server/core/http"
)

const (
	adminToken = "secret"
	version    = "0.1.0"
)

var errFaulty = errors.New("this route always fails")

type route struct {
	path   string
	method http.Method
	cb     *binder.Callback
}

func registerRoutes(e *core.Engine) error {
	isAdmin, err := binder.New(func(args binder.Args) (any, error) {
		return args.String(0) == adminToken, nil
	}, binder.ReturnJSON, binder.Header("X-Token", binder.Str))
	if err != nil {
		return err
	}

	var routes []route
	add := func(path string, method http.Method, fn binder.HandlerFunc, ret binder.Return, params ...binder.Parameter) {
		cb, cbErr := binder.New(fn, ret, params...)
		if cbErr != nil {
			err = errors.Join(err, fmt.Errorf("%s %s: %w", method, path, cbErr))
			return
		}
		routes = append(routes, route{path, method, cb})
	}

	add("/echo", http.MethodPost, func(args binder.Args) (any, error) {
		return args.String(0), nil
	}, binder.ReturnStr, binder.Body(binder.Str))

	add("/faulty", http.MethodGet, func(binder.Args) (any, error) {
		return nil, errFaulty
	}, binder.ReturnNone)

	add("/greet", http.MethodGet, func(args binder.Args) (any, error) {
		name := "stranger"
		if !args.IsNull(0) {
			name = args.String(0)
		}
		if args.Bool(1) {
			return fmt.Sprintf("Hello, %s! You are an admin.", name), nil
		}
		return fmt.Sprintf("Hello, %s!", name), nil
	}, binder.ReturnStr, binder.Query("name", binder.Str).Default("world"), binder.Depends(isAdmin))

	add("/area", http.MethodGet, func(args binder.Args) (any, error) {
		return args.Int(0) * args.Int(1), nil
	}, binder.ReturnInt, binder.Query("width", binder.Int), binder.Query("height", binder.Int))

	add("/json", http.MethodPost, func(args binder.Args) (any, error) {
		body := args.Dict(0)
		return map[string]any{"received": body, "keys": len(body)}, nil
	}, binder.ReturnJSON, binder.Body(binder.Dict))

	add("/go", http.MethodGet, func(binder.Args) (any, error) {
		return http.Redirect(http.StatusFound, http.NewPath("greet"), http.NewQuery("name", "visitor")), nil
	}, binder.ReturnRaw)

	add("/version", http.MethodGet, func(binder.Args) (any, error) {
		return wrapperspb.String(version), nil
	}, binder.ReturnProto)

	add("/stats", http.MethodGet, func(args binder.Args) (any, error) {
		if args.String(0) == "text" {
			return http.NewResponse(http.StatusOK,
				http.NewHeaders(core.HeaderContentType, "text/plain; charset=utf-8"),
				[]byte(e.StatsText())), nil
		}
		body, err := json.Marshal(e.Stats())
		if err != nil {
			return nil, err
		}
		return http.NewResponse(http.StatusOK,
			http.NewHeaders(core.HeaderContentType, "application/json"), body), nil
	}, binder.ReturnRaw, binder.Query("format", binder.Str).Default("json"))

	add("/metrics", http.MethodGet, func(binder.Args) (any, error) {
		text, err := e.Monitor().Text()
		if err != nil {
			return nil, err
		}
		return http.NewResponse(http.StatusOK,
			http.NewHeaders(core.HeaderContentType, e.Monitor().ContentType()), text), nil
	}, binder.ReturnRaw)

	if err != nil {
		return err
	}
	for _, r := range routes {
		if err := e.Register(r.path, r.method, r.cb); err != nil {
			return fmt.Errorf("%s %s: %w", r.method, r.path, err)
		}
	}
	return nil
}

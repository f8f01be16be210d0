/*
Package tinyserver is a minimal HTTP/1.1 server engine on raw TCP sockets.

It does not use net/http. Connections are accepted on a net.Listener,
balanced round-robin over a fixed set of processors, parsed, dispatched
through an exact path/method table, bound to handler parameters and
answered once before the connection is closed.

Quick Start

Basic usage example:

package main

import (
    "context"

    "github.com/searchktools/tiny-server/core"
    "github.com/searchktools/tiny-server/core/binder"
)

func main() {
    engine := core.NewEngine()

    engine.GET("/greet", binder.Must(func(args binder.Args) (any, error) {
        return "Hello, " + args.String(0) + "!", nil
    }, binder.ReturnStr, binder.Query("name", binder.Str).Default("world")))

    engine.Run(context.Background(), core.ListenAddr(8080, false))
}

Modules

  - app: logger, tracing and signal handling around an engine
  - config: viper-backed configuration (flags, TINY_* variables, .env)
  - core: packets, processors, executor, listener and the engine itself
  - core/http: request/response codec, paths, headers, status codes
  - core/router: exact-match dispatch table
  - core/binder: parameter binding and result serialization
  - core/middleware: handler middleware pipeline
  - core/pools: bounded hand-off queues and the read buffer pool
  - core/observability: Prometheus metrics
  - cmd/tiny-server: CLI with demo routes

Lifecycle

Each connection carries exactly one request. Its stages are stamped in
order (receiving, balancing, decoding, dispatching, executing, encoding,
sending, sent) and logged with the total and handler times once sent.
Cancelling the context given to Engine.Run closes the listener and drains
every queue before Run returns.
*/
package tinyserver

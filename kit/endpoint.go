// Package kit holds the small transport-agnostic plumbing shared by the
// sinktrace surfaces: the endpoint/middleware shape, request-scoped context
// keys, and the MCP tool registration helper.
package kit

import "context"

// Endpoint is a transport-agnostic request handler.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares outside-in: Chain(a, b, c)(ep) runs a, b, c,
// then ep.
func Chain(mws ...Middleware) Middleware {
	return func(ep Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			ep = mws[i](ep)
		}
		return ep
	}
}

// Package server provides HTTP routing, middleware, and the local listener for the OAuth redirect.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Redirect Callback
//
// [CallbackHandler] is the inbound half of the authorization-code flow. It does no token work itself:
// the code and state are forwarded to an [AuthCallbackReceiver], which checks the state against the
// pending authorization and runs the exchange.
//
// [CallbackServer] hosts the handler on the redirect URI's host and port (127.0.0.1:3000 by default)
// for as long as the CLI or TUI is running.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server

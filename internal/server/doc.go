// Package server provides HTTP routing, middleware, the party queue API, and the OAuth callback used to link playback accounts.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so path values such as {id}
// are read with [http.Request.PathValue].
//
// # Queue API
//
// [EventHandler] exposes queue views, search, track requests, skipping, host changes, playlist provisioning,
// and playlist following. Failures are written as {"error": kind, "message": text} where kind is one of the
// shared error kinds; rate limited responses carry the upstream Retry-After.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow for one principal, either an event
// or a user. It validates the state parameter, exchanges the code, stores the token pair, and sends the result
// through a channel. It only processes one callback.
//
// `partyq auth login` runs it on a temporary server bound to the redirect URI's port and shuts down
// after receiving the token.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server

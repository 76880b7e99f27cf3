// Package handlers contains reusable HTTP building blocks for the finance API:
// readiness checks, gateway authentication, caller identity and generic middleware.
//
// The upstream auth gateway proves itself with the X-Gateway-Key header and
// forwards the authenticated user in X-User-ID, X-User-Name and X-User-Role:
//
//	auth := handlers.NewGatewayAuth(cfg.GatewayKeyHashes, log)
//	h := handlers.Chain(auth.Middleware, handlers.Identity)(mux)
//
// Handlers read the identity back with handlers.CallerFrom(r.Context()).
package handlers

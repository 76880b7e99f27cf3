package handlers

import (
	"context"
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// Header names set by the upstream auth gateway.
const (
	HeaderGatewayKey = "X-Gateway-Key"
	HeaderUserID     = "X-User-ID"
	HeaderUserName   = "X-User-Name"
	HeaderUserRole   = "X-User-Role"
)

// ErrorWriter renders err in the API's error envelope.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// ══════════════════════════════════════════════════════════════════════════════
// GATEWAY AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// GatewayAuth verifies that a request came through the auth gateway and turns
// the forwarded identity headers into a shared.Caller.
type GatewayAuth struct {
	hashes  [][]byte
	onError ErrorWriter
	log     *logger.Logger

	// verified remembers digests of keys that already matched a hash,
	// so bcrypt runs once per key rather than once per request.
	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewGatewayAuth creates an authenticator over bcrypt hashes of the accepted keys.
// With no hashes configured the key check is skipped and only identity is extracted.
func NewGatewayAuth(hashes []string, onError ErrorWriter, log *logger.Logger) *GatewayAuth {
	if log == nil {
		log = logger.Nop()
	}
	g := &GatewayAuth{
		onError:  onError,
		log:      log.With(logger.Component("gateway_auth")),
		verified: make(map[[sha256.Size]byte]struct{}),
	}
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			g.hashes = append(g.hashes, []byte(h))
		}
	}
	return g
}

// Enabled reports whether gateway keys are enforced.
func (g *GatewayAuth) Enabled() bool {
	return len(g.hashes) > 0
}

// Verify reports whether key matches one of the configured hashes.
func (g *GatewayAuth) Verify(key string) bool {
	if !g.Enabled() {
		return true
	}
	if key == "" {
		return false
	}

	digest := sha256.Sum256([]byte(key))
	g.mu.RLock()
	_, ok := g.verified[digest]
	g.mu.RUnlock()
	if ok {
		return true
	}

	for _, h := range g.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			g.mu.Lock()
			g.verified[digest] = struct{}{}
			g.mu.Unlock()
			return true
		}
	}
	return false
}

// Middleware rejects requests without a valid gateway key and stores the
// forwarded caller in the request context. A request without X-User-ID passes
// through with a zero Caller; operations reject it as unauthorized.
func (g *GatewayAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Verify(r.Header.Get(HeaderGatewayKey)) {
			g.log.Warn("rejected request with invalid gateway key",
				logger.String("path", r.URL.Path),
			)
			g.fail(w, r, shared.NewDomainError("auth", "gateway", shared.ErrUnauthorized, "invalid gateway key"))
			return
		}

		caller, err := CallerFromHeaders(r.Header)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (g *GatewayAuth) fail(w http.ResponseWriter, r *http.Request, err error) {
	if g.onError != nil {
		g.onError(w, r, err)
		return
	}
	http.Error(w, err.Error(), http.StatusUnauthorized)
}

// ══════════════════════════════════════════════════════════════════════════════
// CALLER IDENTITY
// ══════════════════════════════════════════════════════════════════════════════

type callerKey struct{}

// CallerFromHeaders reads the forwarded identity. Missing headers yield a zero
// Caller; a present user with an unknown role is unauthorized.
func CallerFromHeaders(h http.Header) (shared.Caller, error) {
	id := strings.TrimSpace(h.Get(HeaderUserID))
	if id == "" {
		return shared.Caller{}, nil
	}
	role, ok := shared.ParseRole(h.Get(HeaderUserRole))
	if !ok {
		return shared.Caller{}, shared.NewDomainError("auth", "identity", shared.ErrUnauthorized,
			"unknown role "+strings.TrimSpace(h.Get(HeaderUserRole)))
	}
	return shared.Caller{
		UserID: id,
		Name:   strings.TrimSpace(h.Get(HeaderUserName)),
		Role:   role,
	}, nil
}

// WithCaller stores caller in ctx.
func WithCaller(ctx context.Context, caller shared.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller stored by Middleware, or a zero Caller.
func CallerFrom(ctx context.Context) shared.Caller {
	c, _ := ctx.Value(callerKey{}).(shared.Caller)
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERIC MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers to JSON API responses.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain composes middlewares; the first one is the outermost.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

func hashOf(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestGatewayAuthVerify(t *testing.T) {
	auth := NewGatewayAuth([]string{hashOf(t, "old"), " ", hashOf(t, "new")}, nil, nil)

	assert.True(t, auth.Enabled())
	assert.True(t, auth.Verify("new"))
	assert.True(t, auth.Verify("new"), "cached")
	assert.True(t, auth.Verify("old"))
	assert.False(t, auth.Verify("guess"))
	assert.False(t, auth.Verify(""))
}

func TestGatewayAuthDisabledWithoutHashes(t *testing.T) {
	auth := NewGatewayAuth(nil, nil, nil)
	assert.False(t, auth.Enabled())
	assert.True(t, auth.Verify(""))
}

func TestMiddlewareStoresCaller(t *testing.T) {
	var got shared.Caller
	var failed error
	auth := NewGatewayAuth([]string{hashOf(t, "k")}, func(w http.ResponseWriter, r *http.Request, err error) {
		failed = err
		w.WriteHeader(http.StatusUnauthorized)
	}, nil)
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CallerFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderGatewayKey, "k")
	req.Header.Set(HeaderUserID, "u-zahid")
	req.Header.Set(HeaderUserName, " Zahid ")
	req.Header.Set(HeaderUserRole, "partner")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NoError(t, failed)
	assert.Equal(t, shared.Caller{UserID: "u-zahid", Name: "Zahid", Role: shared.RolePartner}, got)

	req.Header.Set(HeaderUserRole, "ADMIN")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, shared.IsUnauthorized(failed))
}

func TestCallerFromHeadersWithoutUser(t *testing.T) {
	c, err := CallerFromHeaders(http.Header{})
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestCompositeHealthChecker(t *testing.T) {
	checker := NewCompositeHealthChecker("v1")
	assert.True(t, checker.Check(context.Background()).Healthy)

	checker.SetTimeout(20 * time.Millisecond)
	checker.AddCheck("database", func(ctx context.Context) error { return nil })
	checker.AddCheck("redis", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	checker.AddCheck("broker", func(ctx context.Context) error { return errors.New("down") })

	status := checker.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "Some checks failed: broker, redis", status.Message)
	assert.True(t, status.Checks["database"].Healthy)
	assert.Equal(t, "down", status.Checks["broker"].Message)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mw("outer"), mw("inner"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

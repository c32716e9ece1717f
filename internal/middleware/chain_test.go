package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dealsight/dealsight/internal/model"
)

// TestMiddlewareChain_Identity_GETRequest は
// Identity ミドルウェアでGETリクエストが通ることを検証する。
func TestMiddlewareChain_Identity_GETRequest(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyFn: func(ctx context.Context, token string) (string, error) {
			return "user-chain-test", nil
		},
	}
	userRepo := &mockUserRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "chain@example.com"}, nil
		},
	}

	identityMW := NewIdentityMiddleware(verifier, userRepo)

	var capturedUserID string
	handler := identityMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		capturedUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-chain-test" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-chain-test")
	}
}

// TestMiddlewareChain_Identity_PUTRequest_WithValidToken は
// Identity ミドルウェアでPUTリクエストがトークン付きで通ることを検証する。
func TestMiddlewareChain_Identity_PUTRequest_WithValidToken(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyFn: func(ctx context.Context, token string) (string, error) {
			return "user-put-test", nil
		},
	}
	userRepo := &mockUserRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "put@example.com"}, nil
		},
	}

	identityMW := NewIdentityMiddleware(verifier, userRepo)

	handlerCalled := false
	handler := identityMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if !handlerCalled {
		t.Error("handler should have been called")
	}
}

// TestMiddlewareChain_NoToken_Returns401 は
// トークンがない場合に401が返されることを検証する。
func TestMiddlewareChain_NoToken_Returns401(t *testing.T) {
	identityMW := NewIdentityMiddleware(&mockTokenVerifier{}, &mockUserRepository{})

	handler := identityMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	// 未認証で401が返ること
	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

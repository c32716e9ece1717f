// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dealsight/dealsight/internal/auth"
	"github.com/dealsight/dealsight/internal/model"
	"github.com/dealsight/dealsight/internal/repository"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに検証済みアイデンティティを格納するためのキー。
var identityContextKey = contextKey("identity")

// NewIdentityMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 検証済みアイデンティティをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401 Unauthorizedを返す。
// メールアドレスはWebhookで同期済みのユーザーレコードから解決する。
// 検証済みだがメールが未登録のユーザーにはNO_VERIFIED_EMAILを返す。
func NewIdentityMiddleware(verifier auth.TokenVerifier, userRepo repository.UserRepository) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダーからBearerトークンを取得
			token := bearerToken(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. トークンを検証してsubjectを取得
			userID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				slog.Warn("トークン検証に失敗しました",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. 同期済みユーザーからメールアドレスを解決
			user, err := userRepo.FindByID(r.Context(), userID)
			if err != nil {
				slog.Error("ユーザーの取得に失敗しました",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				// トークンは有効だがWebhook同期が未着。認証済み扱いにはしない
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUserNotFoundError())
				return
			}
			if user.Email == "" {
				WriteErrorResponse(w, http.StatusForbidden, model.NewNoVerifiedEmailError())
				return
			}

			// 4. 検証済みアイデンティティをコンテキストに注入
			identity := model.Identity{UserID: user.ID, Email: user.Email}
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// 形式が不正な場合は空文字を返す。
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// IdentityFromContext はリクエストコンテキストから検証済みアイデンティティを取得する。
// アイデンティティミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	if !ok || identity.UserID == "" {
		return model.Identity{}, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// UserIDFromContext はリクエストコンテキストから検証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	identity, err := IdentityFromContext(ctx)
	if err != nil {
		return "", err
	}
	return identity.UserID, nil
}

// ContextWithIdentity はコンテキストにアイデンティティを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// Package auth は外部IdPが発行したトークンの検証を提供する。
//
// 認証フロー（ログイン画面、トークン発行）はIdPが担い、
// このアプリケーションは受け取ったBearerトークンの検証のみを行う。
// クライアントが自己申告したユーザーIDは決して信用せず、
// 検証済みトークンのsubjectだけをユーザーIDとして扱う。
package auth

import (
	"context"
	"fmt"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
)

// TokenVerifier はBearerトークンを検証し、検証済みのsubjectを返すインターフェース。
type TokenVerifier interface {
	// Verify はトークンを検証し、IdPが発行したユーザーID（subject）を返す。
	// 無効・期限切れのトークンにはエラーを返す。
	Verify(ctx context.Context, token string) (string, error)
}

// ClerkVerifier はClerkのセッショントークンを検証するTokenVerifierの実装。
type ClerkVerifier struct{}

// NewClerkVerifier はClerkVerifierを生成する。
// secretKeyはIdPのAPIシークレットキーを指定する。
func NewClerkVerifier(secretKey string) *ClerkVerifier {
	clerk.SetKey(secretKey)
	return &ClerkVerifier{}
}

// Verify はセッショントークンを検証し、subjectを返す。
// 署名はIdPのJWKSに対して検証される。
func (v *ClerkVerifier) Verify(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token})
	if err != nil {
		return "", fmt.Errorf("トークンの検証に失敗しました: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("トークンにsubjectが含まれていません")
	}
	return claims.Subject, nil
}

// compile-time interface check
var _ TokenVerifier = (*ClerkVerifier)(nil)

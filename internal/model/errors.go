// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, listing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeNoVerifiedEmail   = "NO_VERIFIED_EMAIL"
	ErrCodeListingNotFound   = "LISTING_NOT_FOUND"
	ErrCodeInvalidField      = "INVALID_FIELD"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidFrequency  = "INVALID_FREQUENCY"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeAlertNotFound     = "ALERT_NOT_FOUND"
	ErrCodeMutationFailed    = "MUTATION_FAILED"
	ErrCodeWebhookInvalid    = "WEBHOOK_INVALID"
	ErrCodeSnapshotUnavail   = "SNAPSHOT_UNAVAILABLE"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewNoVerifiedEmailError は検証済みメールアドレスが取得できない場合のエラーを生成する。
// アイデンティティは検証済みだがメールクレームが欠落しているケースで使用する。
func NewNoVerifiedEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeNoVerifiedEmail,
		Message:  "検証済みのメールアドレスが確認できません。",
		Category: "auth",
		Action:   "アカウントにメールアドレスを登録してから再度お試しください。",
	}
}

// NewListingNotFoundError は案件未検出エラーを生成する。
func NewListingNotFoundError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotFound,
		Message:  fmt.Sprintf("指定された案件が見つかりません: %s", listingID),
		Category: "listing",
		Action:   "案件IDを確認してください。",
	}
}

// NewInvalidFieldError は編集不可フィールドの指定エラーを生成する。
func NewInvalidFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidField,
		Message:  fmt.Sprintf("編集できないフィールドです: %s", field),
		Category: "validation",
		Action:   "編集可能なフィールド名を指定してください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidFrequencyError は無効な配信頻度エラーを生成する。
func NewInvalidFrequencyError(freq string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFrequency,
		Message:  fmt.Sprintf("無効な配信頻度です: %s", freq),
		Category: "validation",
		Action:   "instantly、daily、weekly、monthly のいずれかを指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewAlertNotFoundError はアラートが見つからない場合のエラーを生成する。
func NewAlertNotFoundError(alertID string) *APIError {
	return &APIError{
		Code:     ErrCodeAlertNotFound,
		Message:  fmt.Sprintf("指定されたアラートが見つかりません: %s", alertID),
		Category: "validation",
		Action:   "アラートIDを確認してください。",
	}
}

// NewMutationFailedError は永続化失敗によるロールバック発生エラーを生成する。
// ローカル状態は呼び出し前の値に復元済みであることを保証する。
func NewMutationFailedError(op string) *APIError {
	return &APIError{
		Code:     ErrCodeMutationFailed,
		Message:  fmt.Sprintf("操作を保存できませんでした: %s", op),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewWebhookInvalidError はWebhook署名検証失敗エラーを生成する。
func NewWebhookInvalidError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeWebhookInvalid,
		Message:  fmt.Sprintf("Webhookの検証に失敗しました: %s", reason),
		Category: "validation",
		Action:   "署名ヘッダーと共有シークレットを確認してください。",
	}
}

// NewSnapshotUnavailableError は案件スナップショット取得失敗エラーを生成する。
func NewSnapshotUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeSnapshotUnavail,
		Message:  "案件一覧を取得できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再読み込みしてください。",
	}
}

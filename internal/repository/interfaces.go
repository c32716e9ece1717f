// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/dealsight/dealsight/internal/model"
)

// ListingRepository は案件カタログの読み取りインターフェース。
// 案件の作成は上流のインジェスト（スコープ外）が行い、
// アプリケーションからは読み取り専用。
type ListingRepository interface {
	// ListActive はアクティブな案件全件をcreated_at降順で取得する。
	// カタログ全量の一括読み取りのため、呼び出し側でタイムアウト付き
	// コンテキストを渡すこと。
	ListActive(ctx context.Context) ([]model.RawListing, error)

	// FindByID は指定IDの案件を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.RawListing, error)

	// ListFirstSeenSince は指定時刻以降に初回観測されたアクティブな案件を返す。
	// アラートダイジェストの対象抽出に使用する。
	ListFirstSeenSince(ctx context.Context, since time.Time) ([]model.RawListing, error)
}

// SavedListingRepository は保存済み案件の永続化インターフェース。
// 全ての書き込みは検証済みのuser_idでスコープされる。
type SavedListingRepository interface {
	// ListIDsByUser はユーザーが保存した案件IDの集合を返す。
	ListIDsByUser(ctx context.Context, userID string) (map[string]bool, error)

	// Upsert は保存レコードを冪等に作成する。既存の場合は何もしない。
	Upsert(ctx context.Context, userID, listingID string) error

	// Delete は保存レコードを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, userID, listingID string) error

	// DeleteByUserID はユーザーの全保存レコードを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// HiddenListingRepository は非表示案件の永続化インターフェース。
type HiddenListingRepository interface {
	// ListIDsByUser はユーザーが非表示にした案件IDの集合を返す。
	ListIDsByUser(ctx context.Context, userID string) (map[string]bool, error)

	// Upsert は非表示レコードを冪等に作成する。
	Upsert(ctx context.Context, userID, listingID string) error

	// Delete は非表示レコードを削除する。
	Delete(ctx context.Context, userID, listingID string) error

	// DeleteByUserID はユーザーの全非表示レコードを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ListingOverrideRepository は案件オーバーライドの永続化インターフェース。
type ListingOverrideRepository interface {
	// FindByUserAndListing はユーザーと案件の組でオーバーライドを取得する。
	// 見つからない場合はnilを返す。
	FindByUserAndListing(ctx context.Context, userID, listingID string) (*model.ListingOverride, error)

	// ListByUser はユーザーの全オーバーライドをlisting_idをキーに返す。
	ListByUser(ctx context.Context, userID string) (map[string]*model.ListingOverride, error)

	// Upsert はオーバーライドを冪等にUPSERTする。
	// UNIQUE(user_id, listing_id)制約を利用する。
	Upsert(ctx context.Context, override *model.ListingOverride) error
}

// DealTrackerRepository はディールトラッカーの永続化インターフェース。
type DealTrackerRepository interface {
	// FindByUserAndListing はユーザーと案件の組でトラッカーを取得する。
	// 見つからない場合はnilを返す。
	FindByUserAndListing(ctx context.Context, userID, listingID string) (*model.DealTracker, error)

	// ListByUser はユーザーの全トラッカーをlast_updated降順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.DealTracker, error)

	// Upsert はトラッカーを冪等にUPSERTする。
	Upsert(ctx context.Context, tracker *model.DealTracker) error
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Upsert はユーザーを冪等にUPSERTする。IdPのWebhook同期で使用する。
	Upsert(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連する設定・保存・非表示・トラッカーはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// PreferencesRepository はアラート設定の永続化インターフェース。
type PreferencesRepository interface {
	// FindByUserID はユーザーのアラート設定を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserPreferences, error)

	// Upsert はアラート設定を冪等にUPSERTする。
	Upsert(ctx context.Context, prefs *model.UserPreferences) error

	// ListDueForAlert は配信頻度と前回配信時刻から配信対象のユーザー設定を返す。
	// last_alert_atがNULL（未配信）の設定も対象に含める。
	ListDueForAlert(ctx context.Context, now time.Time) ([]*model.UserPreferences, error)

	// UpdateLastAlertAt は配信成功時刻を記録する。
	UpdateLastAlertAt(ctx context.Context, userID string, at time.Time) error
}

// AlertRepository はユーザー定義アラート条件の永続化インターフェース。
type AlertRepository interface {
	// ListByUser はユーザーのアラート条件一覧を返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Alert, error)

	// Create はアラート条件を作成する。
	Create(ctx context.Context, alert *model.Alert) error

	// Delete はユーザーのアラート条件を削除する。
	// 削除された場合はtrueを返す。
	Delete(ctx context.Context, userID, alertID string) (bool, error)
}

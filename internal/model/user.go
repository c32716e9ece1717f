// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// IDは外部IdPが発行する安定した識別子をそのまま使用する。
// レコードはIdPのWebhook（user.created / user.updated）経由で同期される。
type User struct {
	ID                 string
	Email              string
	SubscriptionTier   string
	SubscriptionStatus string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Identity は認証済みリクエストの検証済みアイデンティティを表す。
// UserIDはIdPが検証したトークンのsubjectであり、
// クライアントが自己申告したIDは決して使用しない。
type Identity struct {
	UserID string
	Email  string
}

// AlertFrequency はメールアラートの配信頻度を表す。
type AlertFrequency string

const (
	// AlertFrequencyInstantly は新着を即時配信する頻度を表す。
	AlertFrequencyInstantly AlertFrequency = "instantly"
	// AlertFrequencyDaily は日次配信を表す。
	AlertFrequencyDaily AlertFrequency = "daily"
	// AlertFrequencyWeekly は週次配信を表す。
	AlertFrequencyWeekly AlertFrequency = "weekly"
	// AlertFrequencyMonthly は月次配信を表す。
	AlertFrequencyMonthly AlertFrequency = "monthly"
)

// IsValid は既知の配信頻度かを返す。
func (f AlertFrequency) IsValid() bool {
	switch f {
	case AlertFrequencyInstantly, AlertFrequencyDaily, AlertFrequencyWeekly, AlertFrequencyMonthly:
		return true
	}
	return false
}

// Interval は配信頻度に対応する最小送信間隔を返す。
// instantlyはワーカーの実行間隔に委ねるため0を返す。
func (f AlertFrequency) Interval() time.Duration {
	switch f {
	case AlertFrequencyDaily:
		return 24 * time.Hour
	case AlertFrequencyWeekly:
		return 7 * 24 * time.Hour
	case AlertFrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// UserPreferences はユーザーのアラート設定を表す。
// Webhookでのユーザー作成時に既定値（価格[0, 1_000_000]、業種なし、日次）で作成される。
type UserPreferences struct {
	UserID         string
	Email          string
	MinPrice       float64
	MaxPrice       float64
	Industries     []string
	AlertFrequency AlertFrequency
	LastAlertAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DefaultPreferences はWebhook同期時に作成する既定のアラート設定を返す。
func DefaultPreferences(userID, email string, now time.Time) *UserPreferences {
	return &UserPreferences{
		UserID:         userID,
		Email:          email,
		MinPrice:       0,
		MaxPrice:       1_000_000,
		Industries:     []string{},
		AlertFrequency: AlertFrequencyDaily,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Alert はユーザー定義のアラート条件を表す。
// nilのフィールドは条件なしとして扱う。
type Alert struct {
	ID             string
	UserID         string
	MinPrice       *float64
	MaxPrice       *float64
	MinRevenue     *float64
	MaxRevenue     *float64
	BusinessTypes  []string
	SearchKeywords []string
	CreatedAt      time.Time
}

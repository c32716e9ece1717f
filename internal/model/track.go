// Package model はドメインモデルを定義する。
package model

import "time"

// SavedListing はユーザーが保存した案件を表す。
// UNIQUE(user_id, listing_id)で冪等にUPSERTされる。
type SavedListing struct {
	ID        string
	UserID    string
	ListingID string
	SavedAt   time.Time
}

// HiddenListing はユーザーが非表示にした案件を表す。
// 非表示の案件は一覧パイプラインの入力から除外される。
type HiddenListing struct {
	ID        string
	UserID    string
	ListingID string
	HiddenAt  time.Time
}

// OverrideField は案件オーバーライドの編集可能フィールドを表す。
type OverrideField string

const (
	// OverrideFieldTitle はタイトルの補正を表す。
	OverrideFieldTitle OverrideField = "title"
	// OverrideFieldPrice は希望売却価格の補正を表す。
	OverrideFieldPrice OverrideField = "price"
	// OverrideFieldRevenue は年次売上の補正を表す。
	OverrideFieldRevenue OverrideField = "revenue"
	// OverrideFieldEBITDA は年次EBITDAの補正を表す。
	OverrideFieldEBITDA OverrideField = "ebitda"
	// OverrideFieldMultiple は売却マルチプルの補正を表す。
	OverrideFieldMultiple OverrideField = "multiple"
)

// IsValid は既知のオーバーライドフィールドかを返す。
func (f OverrideField) IsValid() bool {
	switch f {
	case OverrideFieldTitle, OverrideFieldPrice, OverrideFieldRevenue,
		OverrideFieldEBITDA, OverrideFieldMultiple:
		return true
	}
	return false
}

// ListingOverride はイミュータブルな案件に対するユーザー固有のフィールド補正を表す。
// nilのフィールドは補正なしを意味する。
type ListingOverride struct {
	ID        string
	UserID    string
	ListingID string
	Title     *string
	Price     *float64
	Revenue   *float64
	EBITDA    *float64
	Multiple  *float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrackerField はディールトラッカーの編集可能フィールドを表す。
type TrackerField string

const (
	// TrackerFieldStatus は検討ステータスを表す。
	TrackerFieldStatus TrackerField = "status"
	// TrackerFieldNextSteps は次のアクションを表す。
	TrackerFieldNextSteps TrackerField = "next_steps"
	// TrackerFieldPriority は優先度を表す。
	TrackerFieldPriority TrackerField = "priority"
	// TrackerFieldNotes は自由記述メモを表す。
	TrackerFieldNotes TrackerField = "notes"
)

// IsValid は既知のトラッカーフィールドかを返す。
func (f TrackerField) IsValid() bool {
	switch f {
	case TrackerFieldStatus, TrackerFieldNextSteps, TrackerFieldPriority, TrackerFieldNotes:
		return true
	}
	return false
}

// トラッカー新規作成時の既定値
const (
	TrackerDefaultStatus    = "Interested"
	TrackerDefaultNextSteps = "Review Listing"
	TrackerDefaultPriority  = "Medium"
)

// DealTracker は案件に対するユーザーのワークフロー注釈を表す。
// 最初のフィールド編集時に既定値付きで作成され、以後は部分更新される。
type DealTracker struct {
	ID          string
	UserID      string
	ListingID   string
	Status      string
	NextSteps   string
	Priority    string
	Notes       string
	LastUpdated time.Time
	CreatedAt   time.Time
}

// Package model はドメインモデルを定義する。
package model

import "time"

// BusinessType は事業カテゴリの閉じた列挙を表す。
// 正規化境界で未知の値はBusinessTypeOtherに写像される。
type BusinessType string

const (
	// BusinessTypeService はサービス業を表す。
	BusinessTypeService BusinessType = "service"
	// BusinessTypeSoftware はソフトウェア/SaaS事業を表す。
	BusinessTypeSoftware BusinessType = "software"
	// BusinessTypeEcommerce はEコマース事業を表す。
	BusinessTypeEcommerce BusinessType = "ecommerce"
	// BusinessTypeOther は上記以外の事業を表す。
	BusinessTypeOther BusinessType = "other"
)

// KnownBusinessTypes はBusinessTypeOther以外の既知カテゴリ一覧。
// 「other」選択時のフィルタ判定（既知3種に含まれない値もマッチ）に使用する。
var KnownBusinessTypes = []BusinessType{
	BusinessTypeService,
	BusinessTypeSoftware,
	BusinessTypeEcommerce,
}

// Source は掲載元ブローカーの識別子を表す。
// 未知の値は正規化境界で小文字化される。
type Source string

// 既知のブローカー識別子
const (
	SourceQuietLight     Source = "quietlight"
	SourceEmpireFlippers Source = "empire_flippers"
	SourceFlippa         Source = "flippa"
	SourceAcquire        Source = "acquire"
	SourceVikingMergers  Source = "viking_mergers"
	SourceLatonas        Source = "latonas"
	SourceBizBuySell     Source = "bizbuysell"
	SourceBusinessExits  Source = "business_exits"
	SourceTransWorld     Source = "transworld"
	SourceSunbelt        Source = "sunbelt"
	SourceWebsiteClosers Source = "website_closers"
)

// newListingMaxHours は掲載からNEWバッジを表示する時間の上限。
const newListingMaxHours = 48

// Listing は正規化済みの売却案件を表す。
// アプリケーションからはイミュータブルで、ユーザーごとの補正は
// ListingOverride / DealTracker のサイドテーブルで表現する。
type Listing struct {
	ID             string
	Title          string
	Description    string // サニタイズ済みHTML
	Price          float64
	MonthlyRevenue float64
	MonthlyProfit  float64
	Multiple       float64
	AgeYears       float64
	BusinessType   BusinessType
	Source         Source
	DaysListed     int
	HoursListed    int

	// 任意フィールド。nilの場合は対応するフィルタ条件を適用しない。
	ProfitMargin *float64
	GrowthRate   *float64
	TeamSize     *float64

	Location           string // 空文字は未設定を表す
	OriginalListingURL string
	FirstSeenAt        time.Time
	CreatedAt          time.Time
}

// IsNew は掲載から48時間以内の案件かを返す。
func (l *Listing) IsNew() bool {
	return l.HoursListed <= newListingMaxHours
}

// RawListing は永続化層から取得した正規化前の案件レコードを表す。
// 上流ソースのスキーマをそのまま写したもので、
// 正規化境界（listing.Normalizer）を通してのみListingに変換される。
type RawListing struct {
	ID                 string
	Title              string
	Description        string
	AskingPrice        *float64
	Revenue            *float64 // 年次
	EBITDA             *float64 // 年次
	SellingMultiple    *float64
	Industry           string
	SourcePlatform     string
	BusinessAge        *float64
	ProfitMargin       *float64
	GrowthRate         *float64
	NumberOfEmployees  *float64
	Location           string
	OriginalListingURL string
	Status             string
	FirstSeenAt        *time.Time
	CreatedAt          *time.Time
}

// SortKey は案件一覧のソートキーを表す。
type SortKey string

const (
	// SortNewest は掲載日時の降順ソートを表す。
	SortNewest SortKey = "newest"
	// SortPriceHighLow は価格の降順ソートを表す。
	SortPriceHighLow SortKey = "price_high_low"
	// SortPriceLowHigh は価格の昇順ソートを表す。
	SortPriceLowHigh SortKey = "price_low_high"
	// SortRevenueHighLow は月次売上の降順ソートを表す。
	SortRevenueHighLow SortKey = "revenue_high_low"
	// SortRevenueLowHigh は月次売上の昇順ソートを表す。
	SortRevenueLowHigh SortKey = "revenue_low_high"
)

// SearchScope は全文検索の対象フィールドを表す。
type SearchScope string

const (
	// SearchScopeAll はタイトル・説明・所在地のいずれかにマッチする検索を表す。
	SearchScopeAll SearchScope = "all"
	// SearchScopeTitle はタイトルのみの検索を表す。
	SearchScopeTitle SearchScope = "title"
	// SearchScopeDescription は説明のみの検索を表す。
	SearchScopeDescription SearchScope = "description"
	// SearchScopeLocation は所在地のみの検索を表す。
	SearchScopeLocation SearchScope = "location"
)

// レンジフィルタのしきい値センチネル。
// スライダー最大値は「以上・上限なし」を意味し、到達してもより大きな値を除外しない。
const (
	// PriceSentinel は価格フィルタのセンチネル（10M USD）。
	PriceSentinel = 10_000_000
	// RevenueSentinelMonthly は月次売上フィルタのセンチネル（5M USD/月）。
	// 年次指定のクライテリアはセンチネルごと1/12に換算して比較する。
	RevenueSentinelMonthly = 5_000_000
	// ProfitSentinelMonthly は月次利益フィルタのセンチネル（5M USD/月）。
	ProfitSentinelMonthly = 5_000_000
	// MultipleSentinel はマルチプルフィルタのセンチネル。
	MultipleSentinel = 10.0
	// ProfitMarginSentinel は利益率フィルタのセンチネル（%）。
	ProfitMarginSentinel = 100.0
	// TeamSizeSentinel はチーム規模フィルタのセンチネル（人数）。
	TeamSizeSentinel = 100.0
)

// RangeFilter は単一の数値レンジ条件を表す。
// UnboundedAboveAtが正の場合、Maxがその値以上であれば上限チェックを行わない
// （センチネル=上限なし規約の一元化）。
type RangeFilter struct {
	Min              float64
	Max              float64
	UnboundedAboveAt float64
}

// Matches は値vがレンジ条件を満たすかを返す。
// Min == 0 のとき v == 0 は常にマッチする（「データなし」を上限超過と区別する）。
func (r RangeFilter) Matches(v float64) bool {
	if r.Min == 0 && v == 0 {
		return true
	}
	if v < r.Min {
		return false
	}
	if v > r.Max && !r.unboundedAbove() {
		return false
	}
	return true
}

// Scaled はMin/Max/UnboundedAboveAtを一律factorで除算したレンジを返す。
// 年次クライテリアを月次に換算する際に使用する。
func (r RangeFilter) Scaled(factor float64) RangeFilter {
	if factor == 0 || factor == 1 {
		return r
	}
	return RangeFilter{
		Min:              r.Min / factor,
		Max:              r.Max / factor,
		UnboundedAboveAt: r.UnboundedAboveAt / factor,
	}
}

// unboundedAbove はMaxがセンチネルに到達しており上限チェック不要かを返す。
func (r RangeFilter) unboundedAbove() bool {
	return r.UnboundedAboveAt > 0 && r.Max >= r.UnboundedAboveAt
}

// FilterCriteria は案件一覧のフィルタ条件を表す。
// ゼロ値は無効な条件になるため、DefaultFilterCriteriaから構築すること。
type FilterCriteria struct {
	Sort SortKey

	// 検索クエリ。2文字未満の場合は検索ステージをスキップする。
	Query string
	Scope SearchScope

	Price RangeFilter

	// Revenue/ProfitはIsAnnual*がtrueの場合は年次、falseの場合は月次の値として解釈する。
	Revenue         RangeFilter
	IsAnnualRevenue bool
	Profit          RangeFilter
	IsAnnualProfit  bool

	Multiple     RangeFilter
	ProfitMargin RangeFilter
	GrowthRate   RangeFilter
	TeamSize     RangeFilter

	// 空の場合は全件マッチ（セット未選択は条件なし）。
	BusinessTypes []BusinessType
	Sources       []Source

	// 所在地の部分一致フィルタ。空文字は条件なし。
	Location string
}

// DefaultFilterCriteria は全件を通過させるデフォルトのフィルタ条件を返す。
// 各レンジは[0, センチネル]で、セット・検索条件は空。
func DefaultFilterCriteria() FilterCriteria {
	return FilterCriteria{
		Sort:  SortNewest,
		Scope: SearchScopeAll,
		Price: RangeFilter{Min: 0, Max: PriceSentinel, UnboundedAboveAt: PriceSentinel},
		// 年次表示のデフォルト（5M/月 × 12）
		Revenue:         RangeFilter{Min: 0, Max: RevenueSentinelMonthly * 12, UnboundedAboveAt: RevenueSentinelMonthly * 12},
		IsAnnualRevenue: true,
		Profit:          RangeFilter{Min: 0, Max: ProfitSentinelMonthly * 12, UnboundedAboveAt: ProfitSentinelMonthly * 12},
		IsAnnualProfit:  true,
		Multiple:        RangeFilter{Min: 0, Max: MultipleSentinel, UnboundedAboveAt: MultipleSentinel},
		ProfitMargin:    RangeFilter{Min: 0, Max: ProfitMarginSentinel, UnboundedAboveAt: ProfitMarginSentinel},
		// 成長率のみセンチネル例外なしの純粋な閉区間
		GrowthRate: RangeFilter{Min: -50, Max: 200},
		TeamSize:   RangeFilter{Min: 0, Max: TeamSizeSentinel, UnboundedAboveAt: TeamSizeSentinel},
	}
}

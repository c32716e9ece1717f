package listing

import (
	"strings"

	"github.com/dealsight/dealsight/internal/model"
)

// minQueryLength は検索ステージを適用する最小クエリ長。
// これ未満のクエリは検索条件なしとして扱う。
const minQueryLength = 2

// annualToMonthly は年次クライテリアを月次に換算する除数。
const annualToMonthly = 12

// Filter は案件列にフィルタ条件を適用し、条件を満たす部分列を返す。
// 入力を変更せず、元の相対順序を保存する純粋関数。
// 2段階で評価する: まず検索ステージ、次にフィールド条件の論理積。
// 常に未フィルタの全量スナップショットに対して再評価すること
// （差分適用すると除外が累積する）。
func Filter(listings []model.Listing, c model.FilterCriteria) []model.Listing {
	matched := searchStage(listings, c)

	out := make([]model.Listing, 0, len(matched))
	for _, l := range matched {
		if matchesFields(&l, &c) {
			out = append(out, l)
		}
	}
	return out
}

// searchStage は全文検索ステージを適用する。
// クエリが2文字未満の場合は全件を通過させる。
func searchStage(listings []model.Listing, c model.FilterCriteria) []model.Listing {
	query := strings.ToLower(strings.TrimSpace(c.Query))
	if len(query) < minQueryLength {
		return listings
	}

	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if matchesSearch(&l, query, c.Scope) {
			out = append(out, l)
		}
	}
	return out
}

// matchesSearch はスコープで選択されたフィールドに対する
// 小文字化済みクエリの部分一致を判定する。
func matchesSearch(l *model.Listing, query string, scope model.SearchScope) bool {
	contains := func(field string) bool {
		return strings.Contains(strings.ToLower(field), query)
	}

	switch scope {
	case model.SearchScopeTitle:
		return contains(l.Title)
	case model.SearchScopeDescription:
		return contains(l.Description)
	case model.SearchScopeLocation:
		return contains(l.Location)
	default:
		// allスコープ: いずれかのフィールドにマッチすれば通過
		return contains(l.Title) || contains(l.Description) || contains(l.Location)
	}
}

// matchesFields はフィールド条件の論理積を評価する。
// 最初に不一致となった条件で短絡する。
// 案件側に値がない任意フィールド（nil）は該当条件をスキップする。
func matchesFields(l *model.Listing, c *model.FilterCriteria) bool {
	if !c.Price.Matches(l.Price) {
		return false
	}

	// 売上・利益は月次に揃えて比較する。センチネルも同じ係数で換算する。
	revenue := c.Revenue
	if c.IsAnnualRevenue {
		revenue = revenue.Scaled(annualToMonthly)
	}
	if !revenue.Matches(l.MonthlyRevenue) {
		return false
	}

	profit := c.Profit
	if c.IsAnnualProfit {
		profit = profit.Scaled(annualToMonthly)
	}
	if !profit.Matches(l.MonthlyProfit) {
		return false
	}

	if !c.Multiple.Matches(l.Multiple) {
		return false
	}

	if len(c.BusinessTypes) > 0 && !matchesBusinessType(l.BusinessType, c.BusinessTypes) {
		return false
	}

	if len(c.Sources) > 0 && !containsSource(c.Sources, l.Source) {
		return false
	}

	if l.ProfitMargin != nil && !c.ProfitMargin.Matches(*l.ProfitMargin) {
		return false
	}

	// 成長率はセンチネル例外のない純粋な閉区間
	if l.GrowthRate != nil {
		v := *l.GrowthRate
		if v < c.GrowthRate.Min || v > c.GrowthRate.Max {
			return false
		}
	}

	if l.TeamSize != nil && !c.TeamSize.Matches(*l.TeamSize) {
		return false
	}

	// 所在地: フィルタ・案件の双方に値がある場合のみ部分一致を要求する
	if c.Location != "" && l.Location != "" {
		if !strings.Contains(strings.ToLower(l.Location), strings.ToLower(c.Location)) {
			return false
		}
	}

	return true
}

// matchesBusinessType は業種セット条件を判定する。
// otherが選択されている場合、既知3種に該当しない業種もマッチする。
func matchesBusinessType(t model.BusinessType, selected []model.BusinessType) bool {
	otherSelected := false
	for _, s := range selected {
		if s == t {
			return true
		}
		if s == model.BusinessTypeOther {
			otherSelected = true
		}
	}
	if otherSelected && !isKnownBusinessType(t) {
		return true
	}
	return false
}

// isKnownBusinessType はother以外の既知カテゴリかを返す。
func isKnownBusinessType(t model.BusinessType) bool {
	for _, k := range model.KnownBusinessTypes {
		if t == k {
			return true
		}
	}
	return false
}

func containsSource(sources []model.Source, s model.Source) bool {
	for _, v := range sources {
		if v == s {
			return true
		}
	}
	return false
}

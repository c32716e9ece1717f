// Package alert は新着案件とユーザー定義アラート条件の照合、
// ダイジェストメールの生成と配信を提供する。
package alert

import (
	"strings"

	"github.com/dealsight/dealsight/internal/model"
)

// MatchesAny は案件がユーザーのいずれかのアラート条件にマッチするかを返す。
// アラートを1件も持たないユーザーにはマッチしない。
func MatchesAny(listing *model.RawListing, alerts []*model.Alert) bool {
	for _, a := range alerts {
		if matchesAlert(listing, a) {
			return true
		}
	}
	return false
}

// matchesAlert は案件が単一のアラート条件を満たすかを返す。
// 境界値が未設定（nilまたは0）、あるいは案件側の値が欠落している場合、
// その境界チェックはスキップされる（欠落データを不一致として扱わない）。
func matchesAlert(listing *model.RawListing, a *model.Alert) bool {
	// 価格レンジ
	if boundSet(a.MinPrice) && valuePresent(listing.AskingPrice) && *listing.AskingPrice < *a.MinPrice {
		return false
	}
	if boundSet(a.MaxPrice) && valuePresent(listing.AskingPrice) && *listing.AskingPrice > *a.MaxPrice {
		return false
	}

	// 売上レンジ（年次）
	if boundSet(a.MinRevenue) && valuePresent(listing.Revenue) && *listing.Revenue < *a.MinRevenue {
		return false
	}
	if boundSet(a.MaxRevenue) && valuePresent(listing.Revenue) && *listing.Revenue > *a.MaxRevenue {
		return false
	}

	// 事業カテゴリ
	if len(a.BusinessTypes) > 0 && listing.Industry != "" {
		if !containsString(a.BusinessTypes, listing.Industry) {
			return false
		}
	}

	// キーワード。指定がある場合はタイトルか説明にいずれかが含まれることが必須
	if len(a.SearchKeywords) > 0 {
		searchText := strings.ToLower(listing.Title + " " + listing.Description)
		for _, kw := range a.SearchKeywords {
			if kw == "" {
				continue
			}
			if strings.Contains(searchText, strings.ToLower(kw)) {
				return true
			}
		}
		return false
	}

	return true
}

// boundSet は境界値が有効に指定されているかを返す。
func boundSet(v *float64) bool {
	return v != nil && *v > 0
}

// valuePresent は案件側の値が存在するかを返す。
// 0は上流ソースの欠落データを意味するため不在として扱う。
func valuePresent(v *float64) bool {
	return v != nil && *v > 0
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

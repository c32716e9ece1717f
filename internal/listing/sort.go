package listing

import (
	"slices"

	"github.com/dealsight/dealsight/internal/model"
)

// Sort は案件列をソートキーに従って並べ替えた新しいスライスを返す。
// 安定ソートを使用し、同値の案件は元の相対順序を維持する
// （同値キーでの再レンダリング時にページ割りが揺れないことを保証する）。
// 未知のキーは並べ替えを行わない。
func Sort(listings []model.Listing, key model.SortKey) []model.Listing {
	out := make([]model.Listing, len(listings))
	copy(out, listings)

	cmp := comparatorFor(key)
	if cmp == nil {
		return out
	}

	slices.SortStableFunc(out, cmp)
	return out
}

// comparatorFor はソートキーに対応する比較関数を返す。
// 未知のキーにはnilを返す（恒等＝並べ替えなし）。
func comparatorFor(key model.SortKey) func(a, b model.Listing) int {
	switch key {
	case model.SortNewest:
		// CreatedAtの降順。不正な日時はパース境界でゼロ値に正規化済みのため、
		// ここで例外的な扱いは不要（ゼロ値は最古として末尾に並ぶ）。
		return func(a, b model.Listing) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
	case model.SortPriceHighLow:
		return func(a, b model.Listing) int {
			return compareFloat(b.Price, a.Price)
		}
	case model.SortPriceLowHigh:
		return func(a, b model.Listing) int {
			return compareFloat(a.Price, b.Price)
		}
	case model.SortRevenueHighLow:
		return func(a, b model.Listing) int {
			return compareFloat(b.MonthlyRevenue, a.MonthlyRevenue)
		}
	case model.SortRevenueLowHigh:
		return func(a, b model.Listing) int {
			return compareFloat(a.MonthlyRevenue, b.MonthlyRevenue)
		}
	default:
		return nil
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

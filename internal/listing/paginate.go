package listing

import "github.com/dealsight/dealsight/internal/model"

// DefaultPageSize は1ページあたりのデフォルト表示件数。
const DefaultPageSize = 9

// Page はページネーション結果を表す。
type Page struct {
	Items      []model.Listing
	Page       int // クランプ後の実効ページ番号（1始まり）
	PageSize   int
	TotalCount int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// Paginate は案件列を固定サイズのページに切り出す。
//
// ページ番号の規則（一貫して適用する）:
// 要求ページは常に[1, max(totalPages, 1)]にクランプする。
// 結果セットの縮小でもページサイズ変更でも同じ規則を使い、
// 範囲外ページが空スライスとして黙って表示されることはない。
// 件数0のときtotalPagesは0（「1/0ページ」ではなく空状態として描画される）。
func Paginate(listings []model.Listing, page, pageSize int) Page {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	count := len(listings)
	totalPages := (count + pageSize - 1) / pageSize

	// クランプ。totalPages==0でも実効ページは1とする。
	effective := page
	if max := totalPages; max > 0 {
		if effective > max {
			effective = max
		}
	} else {
		effective = 1
	}
	if effective < 1 {
		effective = 1
	}

	start := (effective - 1) * pageSize
	end := start + pageSize
	if end > count {
		end = count
	}
	if start > count {
		start = count
	}

	items := make([]model.Listing, end-start)
	copy(items, listings[start:end])

	return Page{
		Items:      items,
		Page:       effective,
		PageSize:   pageSize,
		TotalCount: count,
		TotalPages: totalPages,
		HasNext:    effective < totalPages,
		HasPrev:    effective > 1,
	}
}

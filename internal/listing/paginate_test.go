package listing

import (
	"fmt"
	"testing"

	"github.com/dealsight/dealsight/internal/model"
)

func mkMany(n int) []model.Listing {
	listings := make([]model.Listing, n)
	for i := range listings {
		listings[i] = model.Listing{ID: fmt.Sprintf("l%02d", i)}
	}
	return listings
}

// TestPaginate_CoversAllWithoutOverlap は全ページの連結が元の列を
// 重複・欠落なく再構成することをテストする。
func TestPaginate_CoversAllWithoutOverlap(t *testing.T) {
	listings := mkMany(25)

	first := Paginate(listings, 1, 9)
	if first.TotalPages != 3 {
		t.Fatalf("TotalPages = %d, want 3", first.TotalPages)
	}

	var all []string
	for p := 1; p <= first.TotalPages; p++ {
		page := Paginate(listings, p, 9)
		all = append(all, ids(page.Items)...)
	}

	if !equalIDs(all, ids(listings)) {
		t.Errorf("concatenated pages != input: got %d items", len(all))
	}
}

// TestPaginate_LastPartialPage は端数ページの件数をテストする。
func TestPaginate_LastPartialPage(t *testing.T) {
	page := Paginate(mkMany(25), 3, 9)

	if len(page.Items) != 7 {
		t.Errorf("len = %d, want 7", len(page.Items))
	}
	if page.HasNext {
		t.Error("HasNext = true on last page")
	}
	if !page.HasPrev {
		t.Error("HasPrev = false on last page")
	}
}

// TestPaginate_ClampsOutOfRangePage は範囲外のページ要求が最終ページに
// クランプされることをテストする（空スライスを黙って返さない）。
func TestPaginate_ClampsOutOfRangePage(t *testing.T) {
	page := Paginate(mkMany(25), 99, 9)

	if page.Page != 3 {
		t.Errorf("Page = %d, want 3", page.Page)
	}
	if len(page.Items) != 7 {
		t.Errorf("len = %d, want 7", len(page.Items))
	}

	page = Paginate(mkMany(25), 0, 9)
	if page.Page != 1 {
		t.Errorf("Page = %d, want 1 (page below range clamps to first)", page.Page)
	}
	page = Paginate(mkMany(25), -5, 9)
	if page.Page != 1 {
		t.Errorf("Page = %d, want 1", page.Page)
	}
}

// TestPaginate_PageSizeChangeSameClampRule はページサイズ縮小で最大ページが
// 減った場合も同じクランプ規則が適用されることをテストする。
func TestPaginate_PageSizeChangeSameClampRule(t *testing.T) {
	listings := mkMany(20)

	// 9件/ページでは3ページ目が存在する
	if p := Paginate(listings, 3, 9); p.Page != 3 {
		t.Fatalf("Page = %d, want 3", p.Page)
	}

	// 20件/ページでは1ページしかないため、要求ページ3は1にクランプされる
	p := Paginate(listings, 3, 20)
	if p.Page != 1 {
		t.Errorf("Page = %d, want 1", p.Page)
	}
	if len(p.Items) != 20 {
		t.Errorf("len = %d, want 20", len(p.Items))
	}
}

// TestPaginate_Empty は空の結果セットの表現をテストする。
// TotalPagesは0、実効ページは1、アイテムは空。
func TestPaginate_Empty(t *testing.T) {
	page := Paginate(nil, 5, 9)

	if page.TotalPages != 0 {
		t.Errorf("TotalPages = %d, want 0", page.TotalPages)
	}
	if page.Page != 1 {
		t.Errorf("Page = %d, want 1", page.Page)
	}
	if len(page.Items) != 0 {
		t.Errorf("len = %d, want 0", len(page.Items))
	}
	if page.HasNext || page.HasPrev {
		t.Error("empty page must not report neighbors")
	}
}

// TestPaginate_ExactMultiple は件数がページサイズの倍数ちょうどの場合を
// テストする（余分な空ページを作らない）。
func TestPaginate_ExactMultiple(t *testing.T) {
	page := Paginate(mkMany(18), 1, 9)

	if page.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", page.TotalPages)
	}
}

// TestPaginate_InvalidPageSize は不正なページサイズがデフォルト値に
// 置き換わることをテストする。
func TestPaginate_InvalidPageSize(t *testing.T) {
	page := Paginate(mkMany(10), 1, 0)

	if page.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", page.PageSize, DefaultPageSize)
	}
	if len(page.Items) != DefaultPageSize {
		t.Errorf("len = %d, want %d", len(page.Items), DefaultPageSize)
	}
}

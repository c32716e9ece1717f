// Package listing は案件一覧のコアパイプラインを提供する。
// 正規化（parse-on-read）、フィルタ、ソート、ページネーションを含む。
package listing

import (
	"math"
	"strings"
	"time"

	"github.com/dealsight/dealsight/internal/model"
	"github.com/dealsight/dealsight/internal/security"
)

// locationArtifact は上流スクレイパーの既知のデータ欠陥。
// この値の所在地は未設定として扱う。
const locationArtifact = "00"

// sourceMap は上流の掲載元表記を正規化済みのSourceに写像する。
// 未知の値は小文字化してそのまま使用する。
var sourceMap = map[string]model.Source{
	"BusinessExits":  model.SourceBusinessExits,
	"EmpireFlippers": model.SourceEmpireFlippers,
	"Flippa":         model.SourceFlippa,
	"Acquire":        model.SourceAcquire,
	"WebsiteClosers": model.SourceWebsiteClosers,
	"VikingMergers":  model.SourceVikingMergers,
	"Latonas":        model.SourceLatonas,
	"BizBuySell":     model.SourceBizBuySell,
	"QuietLight":     model.SourceQuietLight,
	"TransWorld":     model.SourceTransWorld,
	"Sunbelt":        model.SourceSunbelt,
}

// businessTypeMap は上流の業種表記をBusinessTypeに写像する。
// 未知の値はBusinessTypeOtherになる。
var businessTypeMap = map[string]model.BusinessType{
	"Ecommerce":  model.BusinessTypeEcommerce,
	"E-commerce": model.BusinessTypeEcommerce,
	"SaaS":       model.BusinessTypeSoftware,
	"Software":   model.BusinessTypeSoftware,
	"Service":    model.BusinessTypeService,
	"Services":   model.BusinessTypeService,
}

// Normalizer は永続化層の生レコードを正規化済みのListingに変換する。
// 掲載元・業種の写像、"00"所在地アーティファクトの除去、年次→月次換算、
// 説明HTMLのサニタイズをこの単一境界で行う。
type Normalizer struct {
	sanitizer security.DescriptionSanitizerService
}

// NewNormalizer はNormalizerの新しいインスタンスを生成する。
func NewNormalizer(sanitizer security.DescriptionSanitizerService) *Normalizer {
	return &Normalizer{sanitizer: sanitizer}
}

// Normalize は生レコード1件をListingに変換する。
// 欠落した数値フィールドは0、文字列フィールドは空文字に正規化する。
// nowは掲載経過日数の計算基準時刻。
func (n *Normalizer) Normalize(raw model.RawListing, now time.Time) model.Listing {
	l := model.Listing{
		ID:                 raw.ID,
		Title:              raw.Title,
		Description:        n.sanitizer.Sanitize(raw.Description),
		Price:              deref(raw.AskingPrice),
		Multiple:           deref(raw.SellingMultiple),
		AgeYears:           deref(raw.BusinessAge),
		BusinessType:       NormalizeBusinessType(raw.Industry),
		Source:             NormalizeSource(raw.SourcePlatform),
		Location:           cleanLocation(raw.Location),
		OriginalListingURL: raw.OriginalListingURL,
	}

	// 年次のソース値を月次に換算する
	if raw.Revenue != nil {
		l.MonthlyRevenue = math.Round(*raw.Revenue / 12)
	}
	if raw.EBITDA != nil {
		l.MonthlyProfit = math.Round(*raw.EBITDA / 12)
	}

	// 任意フィールドはnilを維持し、フィルタ段で述語スキップの判定に使う
	l.ProfitMargin = raw.ProfitMargin
	l.GrowthRate = raw.GrowthRate
	l.TeamSize = raw.NumberOfEmployees

	if raw.FirstSeenAt != nil {
		l.FirstSeenAt = *raw.FirstSeenAt
		elapsed := now.Sub(*raw.FirstSeenAt)
		if elapsed < 0 {
			elapsed = 0
		}
		l.DaysListed = int(elapsed.Hours() / 24)
		l.HoursListed = int(elapsed.Hours())
	}
	if raw.CreatedAt != nil {
		l.CreatedAt = *raw.CreatedAt
	}

	return l
}

// NormalizeAll は生レコード列を順序を保って正規化する。
func (n *Normalizer) NormalizeAll(raws []model.RawListing, now time.Time) []model.Listing {
	listings := make([]model.Listing, 0, len(raws))
	for _, raw := range raws {
		listings = append(listings, n.Normalize(raw, now))
	}
	return listings
}

// NormalizeSource は掲載元表記を正規化する。未知の値は小文字化する。
func NormalizeSource(platform string) model.Source {
	if s, ok := sourceMap[platform]; ok {
		return s
	}
	return model.Source(strings.ToLower(platform))
}

// NormalizeBusinessType は業種表記を正規化する。未知の値はotherになる。
func NormalizeBusinessType(industry string) model.BusinessType {
	if t, ok := businessTypeMap[industry]; ok {
		return t
	}
	return model.BusinessTypeOther
}

// cleanLocation は所在地文字列を整形し、既知のアーティファクト"00"を除去する。
func cleanLocation(location string) string {
	if location == "" || location == locationArtifact {
		return ""
	}
	cleaned := strings.TrimSpace(location)
	if cleaned == locationArtifact {
		return ""
	}
	return cleaned
}

// deref はnilを0として参照を外す。
func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

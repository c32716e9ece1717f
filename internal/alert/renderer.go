package alert

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/dealsight/dealsight/internal/model"
)

// RenderedDigest は配信可能な形に整形されたダイジェストメールを表す。
type RenderedDigest struct {
	Subject string
	HTML    string
	Text    string
}

// digestHTMLTemplate はダイジェストメールのHTML本文テンプレート。
// 説明文はサニタイズ済みHTMLのためエスケープせずに埋め込む。
const digestHTMLTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 640px; margin: 0 auto;">
  <h2>新着案件のお知らせ</h2>
  <p>条件にマッチする案件が{{len .Listings}}件見つかりました。</p>
  {{if .Insights}}
  <div style="background: #f5f7fa; padding: 12px 16px; border-radius: 6px;">
    <strong>マーケットサマリー</strong>
    <ul>
      {{range .Insights}}<li>{{.}}</li>{{end}}
    </ul>
  </div>
  {{end}}
  {{range .Listings}}
  <div style="border: 1px solid #e0e0e0; border-radius: 6px; padding: 16px; margin: 12px 0;">
    <h3 style="margin: 0 0 8px 0;">{{.Title}}</h3>
    <p style="margin: 4px 0;">価格: {{usd .Price}} / 月次売上: {{usd .MonthlyRevenue}} / マルチプル: {{printf "%.1f" .Multiple}}x</p>
    <p style="margin: 4px 0; color: #666;">カテゴリ: {{.BusinessType}} / 掲載元: {{.Source}}</p>
    {{if .OriginalListingURL}}<p style="margin: 4px 0;"><a href="{{.OriginalListingURL}}">掲載元で見る</a></p>{{end}}
  </div>
  {{end}}
</body>
</html>`

// Renderer は新着案件のダイジェストメールを生成する。
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer はRendererを生成する。
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("digest").Funcs(template.FuncMap{
		"usd": formatUSD,
	}).Parse(digestHTMLTemplate)
	if err != nil {
		return nil, fmt.Errorf("ダイジェストテンプレートの解析に失敗しました: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// digestData はテンプレートに渡すデータ。
type digestData struct {
	Listings []model.Listing
	Insights []string
}

// Render は案件一覧からダイジェストメールを生成する。
// insightsはnil許容で、指定された場合のみサマリーセクションを含める。
func (r *Renderer) Render(listings []model.Listing, insights []string) (*RenderedDigest, error) {
	if len(listings) == 0 {
		return nil, fmt.Errorf("配信対象の案件がありません")
	}

	var html strings.Builder
	if err := r.tmpl.Execute(&html, digestData{Listings: listings, Insights: insights}); err != nil {
		return nil, fmt.Errorf("ダイジェストの生成に失敗しました: %w", err)
	}

	return &RenderedDigest{
		Subject: fmt.Sprintf("新着案件 %d件のお知らせ", len(listings)),
		HTML:    html.String(),
		Text:    renderText(listings, insights),
	}, nil
}

// renderText はHTMLを表示できないクライアント向けのプレーンテキスト本文を生成する。
func renderText(listings []model.Listing, insights []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "条件にマッチする案件が%d件見つかりました。\n\n", len(listings))

	if len(insights) > 0 {
		sb.WriteString("マーケットサマリー:\n")
		for _, in := range insights {
			fmt.Fprintf(&sb, "  - %s\n", in)
		}
		sb.WriteString("\n")
	}

	for i, l := range listings {
		fmt.Fprintf(&sb, "--- 案件 #%d ---\n", i+1)
		fmt.Fprintf(&sb, "タイトル: %s\n", l.Title)
		fmt.Fprintf(&sb, "価格: %s / 月次売上: %s / マルチプル: %.1fx\n",
			formatUSD(l.Price), formatUSD(l.MonthlyRevenue), l.Multiple)
		fmt.Fprintf(&sb, "カテゴリ: %s / 掲載元: %s\n", l.BusinessType, l.Source)
		if l.OriginalListingURL != "" {
			fmt.Fprintf(&sb, "URL: %s\n", l.OriginalListingURL)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatUSD は金額を3桁区切りのUSD表記に整形する。
func formatUSD(v float64) string {
	n := int64(v)
	if n < 0 {
		return "-" + formatUSD(-v)
	}

	s := fmt.Sprintf("%d", n)
	var sb strings.Builder
	sb.WriteString("$")
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteString(",")
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

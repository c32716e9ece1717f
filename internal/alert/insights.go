package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/dealsight/dealsight/internal/model"
)

// insightsSystemInstruction はマーケットサマリー生成のシステム指示。
// 出力はダイジェストメールにそのまま埋め込まれるため、簡潔な箇条書きに限定する。
const insightsSystemInstruction = `You are an analyst for an online business brokerage aggregator.
You will receive a list of businesses newly listed for sale, with their asking price,
monthly revenue, valuation multiple, business category, and source marketplace.

Summarize the batch for a prospective buyer in 2-4 concise bullet points.
Focus on: notable pricing relative to revenue multiples, category concentration,
and any listing that stands out as unusually priced. Do not repeat the raw list.
Each bullet must be a single short sentence.`

// InsightsGenerator は新着案件のバッチからマーケットサマリーを生成する。
// APIキー未設定の場合は無効化され、Generateは常に空の結果を返す。
type InsightsGenerator struct {
	apiKey    string
	modelName string
	logger    *slog.Logger
}

// NewInsightsGenerator はInsightsGeneratorを生成する。
// apiKeyが空の場合、生成は無効化される（ダイジェストはサマリーなしで配信される）。
func NewInsightsGenerator(apiKey, modelName string, logger *slog.Logger) *InsightsGenerator {
	return &InsightsGenerator{
		apiKey:    apiKey,
		modelName: modelName,
		logger:    logger,
	}
}

// Enabled はサマリー生成が有効かを返す。
func (g *InsightsGenerator) Enabled() bool {
	return g.apiKey != ""
}

// Generate は案件バッチのマーケットサマリーを箇条書きで返す。
// 無効化されている場合はエラーなしでnilを返す。
func (g *InsightsGenerator) Generate(ctx context.Context, listings []model.Listing) ([]string, error) {
	if !g.Enabled() || len(listings) == 0 {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("クライアントの生成に失敗しました: %w", err)
	}

	systemContent := &genai.Content{
		Parts: []*genai.Part{
			{Text: insightsSystemInstruction},
		},
		Role: "system",
	}
	userContent := &genai.Content{
		Parts: []*genai.Part{
			{Text: buildInsightsPrompt(listings)},
		},
		Role: "user",
	}

	resp, err := client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{systemContent, userContent},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   insightsResponseSchema(),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("サマリー生成のAPI呼び出しに失敗しました: %w", err)
	}

	var result struct {
		Insights []string `json:"insights"`
	}
	if err := json.Unmarshal([]byte(resp.Text()), &result); err != nil {
		return nil, fmt.Errorf("サマリーのJSON解析に失敗しました: %w", err)
	}

	return result.Insights, nil
}

// buildInsightsPrompt は案件一覧をプロンプト用のテキストに整形する。
func buildInsightsPrompt(listings []model.Listing) string {
	var sb strings.Builder
	sb.WriteString("New listings:\n")
	for _, l := range listings {
		fmt.Fprintf(&sb, "- %s | price %s | monthly revenue %s | multiple %.1fx | category %s | source %s\n",
			l.Title, formatUSD(l.Price), formatUSD(l.MonthlyRevenue), l.Multiple, l.BusinessType, l.Source)
	}
	return sb.String()
}

func insightsResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"insights": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "2-4 concise bullet points summarizing the batch.",
			},
		},
		Required: []string{"insights"},
	}
}

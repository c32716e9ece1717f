// Package handler はHTTP APIハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dealsight/dealsight/internal/listing"
	"github.com/dealsight/dealsight/internal/middleware"
	"github.com/dealsight/dealsight/internal/model"
)

// ListingServiceInterface は案件ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	// Browse はフィルタ・ソート・ページネーションを適用した一覧を返す。
	Browse(ctx context.Context, userID string, criteria model.FilterCriteria, page, pageSize int) (*listing.BrowseResult, error)
	// GetDetail は案件詳細をオーバーライド適用済みで返す。
	GetDetail(ctx context.Context, userID, listingID string) (*model.Listing, bool, error)
	// Refresh はスナップショットキャッシュを破棄して再取得する。
	Refresh(ctx context.Context) error
}

// ListingHandler は案件一覧・詳細のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{service: service}
}

// listingResponse は案件1件のAPIレスポンス。
type listingResponse struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Price              float64  `json:"price"`
	MonthlyRevenue     float64  `json:"monthly_revenue"`
	MonthlyProfit      float64  `json:"monthly_profit"`
	Multiple           float64  `json:"multiple"`
	AgeYears           float64  `json:"age_years"`
	BusinessType       string   `json:"business_type"`
	Source             string   `json:"source"`
	DaysListed         int      `json:"days_listed"`
	ProfitMargin       *float64 `json:"profit_margin"`
	GrowthRate         *float64 `json:"growth_rate"`
	TeamSize           *float64 `json:"team_size"`
	Location           string   `json:"location"`
	OriginalListingURL string   `json:"original_listing_url"`
	FirstSeenAt        string   `json:"first_seen_at"`
	IsNew              bool     `json:"is_new"`
	IsSaved            bool     `json:"is_saved"`
}

// listingPageResponse は一覧エンドポイントのAPIレスポンス。
type listingPageResponse struct {
	Items      []listingResponse `json:"items"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalCount int               `json:"total_count"`
	TotalPages int               `json:"total_pages"`
	HasNext    bool              `json:"has_next"`
	HasPrev    bool              `json:"has_prev"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListListings は案件一覧を返す。
// GET /api/listings
//
// クエリパラメータの解釈不能な値は400にせず、該当条件をデフォルトに戻して継続する。
// URLの手編集やブックマークの陳腐化で一覧全体が壊れないこと。
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	criteria, page, pageSize := parseCriteria(r.URL.Query())

	result, err := h.service.Browse(r.Context(), userID, criteria, page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toListingPageResponse(result))
}

// GetListing は案件詳細を返す。
// GET /api/listings/:id
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listingID := chi.URLParam(r, "id")

	l, saved, err := h.service.GetDetail(r.Context(), userID, listingID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toListingResponse(*l, saved))
}

// RefreshListings はスナップショットを明示的に再取得する。
// POST /api/listings/refresh
func (h *ListingHandler) RefreshListings(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Refresh(r.Context()); err != nil {
		handleServiceError(w, model.NewSnapshotUnavailableError())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetupListingRoutes は案件関連のルーティングを設定したchi.Routerを返す。
// refreshMiddleware が nil でない場合、POST /api/listings/refresh に専用レート制限を適用する。
func SetupListingRoutes(service ListingServiceInterface, refreshMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewListingHandler(service)

	r.Route("/api/listings", func(r chi.Router) {
		r.Get("/", h.ListListings)

		if refreshMiddleware != nil {
			r.With(refreshMiddleware).Post("/refresh", h.RefreshListings)
		} else {
			r.Post("/refresh", h.RefreshListings)
		}

		r.Get("/{id}", h.GetListing)
	})

	return r
}

// --- クエリパラメータ解析 ---

// parseCriteria はクエリパラメータからフィルタ条件とページ指定を構築する。
// 欠落・不正な値はDefaultFilterCriteriaの該当値を維持する。
func parseCriteria(q map[string][]string) (model.FilterCriteria, int, int) {
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	c := model.DefaultFilterCriteria()

	switch key := model.SortKey(get("sort")); key {
	case model.SortNewest, model.SortPriceHighLow, model.SortPriceLowHigh,
		model.SortRevenueHighLow, model.SortRevenueLowHigh:
		c.Sort = key
	}

	c.Query = get("q")
	switch scope := model.SearchScope(get("scope")); scope {
	case model.SearchScopeAll, model.SearchScopeTitle,
		model.SearchScopeDescription, model.SearchScopeLocation:
		c.Scope = scope
	}

	parseRange(&c.Price, get("price_min"), get("price_max"))
	parseRange(&c.Revenue, get("revenue_min"), get("revenue_max"))
	parseRange(&c.Profit, get("profit_min"), get("profit_max"))
	parseRange(&c.Multiple, get("multiple_min"), get("multiple_max"))
	parseRange(&c.ProfitMargin, get("margin_min"), get("margin_max"))
	parseRange(&c.GrowthRate, get("growth_min"), get("growth_max"))
	parseRange(&c.TeamSize, get("team_min"), get("team_max"))

	if b, err := strconv.ParseBool(get("annual_revenue")); err == nil {
		c.IsAnnualRevenue = b
	}
	if b, err := strconv.ParseBool(get("annual_profit")); err == nil {
		c.IsAnnualProfit = b
	}

	// 月次指定のレンジはセンチネルも月次基準に揃える。
	// デフォルトのUnboundedAboveAtは年次値のため、そのままでは
	// 月次のセンチネル上限が実上限として扱われてしまう。
	if !c.IsAnnualRevenue {
		c.Revenue.UnboundedAboveAt = model.RevenueSentinelMonthly
	}
	if !c.IsAnnualProfit {
		c.Profit.UnboundedAboveAt = model.ProfitSentinelMonthly
	}

	for _, v := range splitCSV(get("types")) {
		c.BusinessTypes = append(c.BusinessTypes, model.BusinessType(v))
	}
	for _, v := range splitCSV(get("sources")) {
		c.Sources = append(c.Sources, model.Source(v))
	}
	c.Location = get("location")

	page := parsePositiveInt(get("page"), 1)
	pageSize := parsePositiveInt(get("page_size"), listing.DefaultPageSize)

	return c, page, pageSize
}

// parseRange はmin/maxの文字列をレンジに反映する。解釈できない値は既定値を維持する。
func parseRange(r *model.RangeFilter, minStr, maxStr string) {
	if v, err := strconv.ParseFloat(minStr, 64); err == nil {
		r.Min = v
	}
	if v, err := strconv.ParseFloat(maxStr, 64); err == nil {
		r.Max = v
	}
}

// parsePositiveInt は正の整数として解釈できない場合にfallbackを返す。
func parsePositiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// splitCSV はカンマ区切りの値を空要素を除いて分割する。
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// --- レスポンス変換 ---

// toListingResponse はmodel.ListingからAPIレスポンスに変換する。
func toListingResponse(l model.Listing, saved bool) listingResponse {
	return listingResponse{
		ID:                 l.ID,
		Title:              l.Title,
		Description:        l.Description,
		Price:              l.Price,
		MonthlyRevenue:     l.MonthlyRevenue,
		MonthlyProfit:      l.MonthlyProfit,
		Multiple:           l.Multiple,
		AgeYears:           l.AgeYears,
		BusinessType:       string(l.BusinessType),
		Source:             string(l.Source),
		DaysListed:         l.DaysListed,
		ProfitMargin:       l.ProfitMargin,
		GrowthRate:         l.GrowthRate,
		TeamSize:           l.TeamSize,
		Location:           l.Location,
		OriginalListingURL: l.OriginalListingURL,
		FirstSeenAt:        l.FirstSeenAt.UTC().Format(time.RFC3339),
		IsNew:              l.IsNew(),
		IsSaved:            saved,
	}
}

// toListingPageResponse は一覧パイプラインの結果からAPIレスポンスに変換する。
func toListingPageResponse(result *listing.BrowseResult) listingPageResponse {
	items := make([]listingResponse, 0, len(result.Page.Items))
	for _, l := range result.Page.Items {
		items = append(items, toListingResponse(l, result.SavedIDs[l.ID]))
	}
	return listingPageResponse{
		Items:      items,
		Page:       result.Page.Page,
		PageSize:   result.Page.PageSize,
		TotalCount: result.Page.TotalCount,
		TotalPages: result.Page.TotalPages,
		HasNext:    result.Page.HasNext,
		HasPrev:    result.Page.HasPrev,
	}
}

// --- ヘルパー関数 ---

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeUserNotFound:
		return http.StatusUnauthorized
	case model.ErrCodeNoVerifiedEmail:
		return http.StatusForbidden
	case model.ErrCodeListingNotFound, model.ErrCodeAlertNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidField, model.ErrCodeInvalidRequest, model.ErrCodeInvalidFrequency,
		model.ErrCodeWebhookInvalid:
		return http.StatusBadRequest
	case model.ErrCodeMutationFailed:
		return http.StatusConflict
	case model.ErrCodeSnapshotUnavail:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dealsight/dealsight/internal/middleware"
	"github.com/dealsight/dealsight/internal/model"
)

// AlertStore はアラート条件ハンドラーが必要とする永続化インターフェース。
// repository.AlertRepositoryのサブセット。
type AlertStore interface {
	ListByUser(ctx context.Context, userID string) ([]*model.Alert, error)
	Create(ctx context.Context, alert *model.Alert) error
	Delete(ctx context.Context, userID, alertID string) (bool, error)
}

// AlertHandler はユーザー定義アラート条件のHTTPハンドラー。
type AlertHandler struct {
	store AlertStore
}

// NewAlertHandler はAlertHandlerを生成する。
func NewAlertHandler(store AlertStore) *AlertHandler {
	return &AlertHandler{store: store}
}

// createAlertRequest はアラート条件作成リクエストのボディ。
type createAlertRequest struct {
	MinPrice       *float64 `json:"min_price"`
	MaxPrice       *float64 `json:"max_price"`
	MinRevenue     *float64 `json:"min_revenue"`
	MaxRevenue     *float64 `json:"max_revenue"`
	BusinessTypes  []string `json:"business_types"`
	SearchKeywords []string `json:"search_keywords"`
}

// alertResponse はアラート条件のAPIレスポンス。
type alertResponse struct {
	ID             string   `json:"id"`
	MinPrice       *float64 `json:"min_price"`
	MaxPrice       *float64 `json:"max_price"`
	MinRevenue     *float64 `json:"min_revenue"`
	MaxRevenue     *float64 `json:"max_revenue"`
	BusinessTypes  []string `json:"business_types"`
	SearchKeywords []string `json:"search_keywords"`
	CreatedAt      string   `json:"created_at"`
}

// ListAlerts はユーザーのアラート条件一覧を返す。
// GET /api/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	alerts, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		items = append(items, toAlertResponse(a))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// CreateAlert はアラート条件を作成する。
// POST /api/alerts
func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	if err := validateAlertBounds(&req); err != nil {
		handleServiceError(w, err)
		return
	}

	alert := &model.Alert{
		ID:             uuid.New().String(),
		UserID:         userID,
		MinPrice:       req.MinPrice,
		MaxPrice:       req.MaxPrice,
		MinRevenue:     req.MinRevenue,
		MaxRevenue:     req.MaxRevenue,
		BusinessTypes:  req.BusinessTypes,
		SearchKeywords: req.SearchKeywords,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.store.Create(r.Context(), alert); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAlertResponse(alert))
}

// DeleteAlert はアラート条件を削除する。
// DELETE /api/alerts/:id
func (h *AlertHandler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	alertID := chi.URLParam(r, "id")

	deleted, err := h.store.Delete(r.Context(), userID, alertID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !deleted {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAlertNotFoundError(alertID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetupAlertRoutes はアラート条件関連のルーティングを設定したchi.Routerを返す。
func SetupAlertRoutes(store AlertStore) http.Handler {
	r := chi.NewRouter()
	h := NewAlertHandler(store)

	r.Route("/api/alerts", func(r chi.Router) {
		r.Get("/", h.ListAlerts)
		r.Post("/", h.CreateAlert)
		r.Delete("/{id}", h.DeleteAlert)
	})

	return r
}

// validateAlertBounds はレンジ指定の整合性を検証する。
func validateAlertBounds(req *createAlertRequest) error {
	if req.MinPrice != nil && *req.MinPrice < 0 {
		return model.NewInvalidRequestError("最低価格は0以上を指定してください")
	}
	if req.MinPrice != nil && req.MaxPrice != nil && *req.MinPrice > *req.MaxPrice {
		return model.NewInvalidRequestError("価格帯の指定が不正です")
	}
	if req.MinRevenue != nil && *req.MinRevenue < 0 {
		return model.NewInvalidRequestError("最低売上は0以上を指定してください")
	}
	if req.MinRevenue != nil && req.MaxRevenue != nil && *req.MinRevenue > *req.MaxRevenue {
		return model.NewInvalidRequestError("売上帯の指定が不正です")
	}
	return nil
}

// toAlertResponse はmodel.AlertからAPIレスポンスに変換する。
func toAlertResponse(a *model.Alert) alertResponse {
	resp := alertResponse{
		ID:             a.ID,
		MinPrice:       a.MinPrice,
		MaxPrice:       a.MaxPrice,
		MinRevenue:     a.MinRevenue,
		MaxRevenue:     a.MaxRevenue,
		BusinessTypes:  a.BusinessTypes,
		SearchKeywords: a.SearchKeywords,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if resp.BusinessTypes == nil {
		resp.BusinessTypes = []string{}
	}
	if resp.SearchKeywords == nil {
		resp.SearchKeywords = []string{}
	}
	return resp
}

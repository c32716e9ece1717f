package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dealsight/dealsight/internal/middleware"
	"github.com/dealsight/dealsight/internal/model"
)

// PreferencesStore はアラート設定ハンドラーが必要とする永続化インターフェース。
// repository.PreferencesRepositoryのサブセット。
type PreferencesStore interface {
	FindByUserID(ctx context.Context, userID string) (*model.UserPreferences, error)
	Upsert(ctx context.Context, prefs *model.UserPreferences) error
}

// PreferencesHandler はアラート設定のHTTPハンドラー。
type PreferencesHandler struct {
	store PreferencesStore
}

// NewPreferencesHandler はPreferencesHandlerを生成する。
func NewPreferencesHandler(store PreferencesStore) *PreferencesHandler {
	return &PreferencesHandler{store: store}
}

// updatePreferencesRequest はアラート設定更新リクエストのボディ。
type updatePreferencesRequest struct {
	MinPrice       float64  `json:"min_price"`
	MaxPrice       float64  `json:"max_price"`
	Industries     []string `json:"industries"`
	AlertFrequency string   `json:"alert_frequency"`
}

// preferencesResponse はアラート設定のAPIレスポンス。
type preferencesResponse struct {
	MinPrice       float64  `json:"min_price"`
	MaxPrice       float64  `json:"max_price"`
	Industries     []string `json:"industries"`
	AlertFrequency string   `json:"alert_frequency"`
	LastAlertAt    *string  `json:"last_alert_at"`
}

// GetPreferences はユーザーのアラート設定を返す。
// GET /api/preferences
//
// Webhook同期前で設定レコードが未作成の場合は既定値を返す（永続化はしない）。
func (h *PreferencesHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	prefs, err := h.store.FindByUserID(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if prefs == nil {
		prefs = model.DefaultPreferences(identity.UserID, identity.Email, time.Now().UTC())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPreferencesResponse(prefs))
}

// UpdatePreferences はユーザーのアラート設定を更新する。
// PUT /api/preferences
func (h *PreferencesHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	freq := model.AlertFrequency(req.AlertFrequency)
	if !freq.IsValid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFrequencyError(req.AlertFrequency))
		return
	}
	if req.MinPrice < 0 || req.MaxPrice < 0 || (req.MaxPrice > 0 && req.MinPrice > req.MaxPrice) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("価格帯の指定が不正です"))
		return
	}

	now := time.Now().UTC()

	// last_alert_atは設定更新では変更しない。既存レコードから引き継ぐ
	existing, err := h.store.FindByUserID(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	prefs := &model.UserPreferences{
		UserID:         identity.UserID,
		Email:          identity.Email,
		MinPrice:       req.MinPrice,
		MaxPrice:       req.MaxPrice,
		Industries:     req.Industries,
		AlertFrequency: freq,
		UpdatedAt:      now,
		CreatedAt:      now,
	}
	if prefs.Industries == nil {
		prefs.Industries = []string{}
	}
	if existing != nil {
		prefs.LastAlertAt = existing.LastAlertAt
		prefs.CreatedAt = existing.CreatedAt
	}

	if err := h.store.Upsert(r.Context(), prefs); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPreferencesResponse(prefs))
}

// SetupPreferencesRoutes はアラート設定関連のルーティングを設定したchi.Routerを返す。
func SetupPreferencesRoutes(store PreferencesStore) http.Handler {
	r := chi.NewRouter()
	h := NewPreferencesHandler(store)

	r.Route("/api/preferences", func(r chi.Router) {
		r.Get("/", h.GetPreferences)
		r.Put("/", h.UpdatePreferences)
	})

	return r
}

// toPreferencesResponse はmodel.UserPreferencesからAPIレスポンスに変換する。
func toPreferencesResponse(prefs *model.UserPreferences) preferencesResponse {
	resp := preferencesResponse{
		MinPrice:       prefs.MinPrice,
		MaxPrice:       prefs.MaxPrice,
		Industries:     prefs.Industries,
		AlertFrequency: string(prefs.AlertFrequency),
	}
	if resp.Industries == nil {
		resp.Industries = []string{}
	}
	if prefs.LastAlertAt != nil {
		at := prefs.LastAlertAt.UTC().Format(time.RFC3339)
		resp.LastAlertAt = &at
	}
	return resp
}

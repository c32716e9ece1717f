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

// TrackServiceInterface はユーザー操作ハンドラーが必要とするサービスインターフェース。
type TrackServiceInterface interface {
	// ToggleSave は保存状態を反転し、反転後の状態を返す。
	ToggleSave(ctx context.Context, userID, listingID string) (bool, error)
	// ToggleHide は非表示状態を反転し、反転後の状態を返す。
	ToggleHide(ctx context.Context, userID, listingID string) (bool, error)
	// SetOverride は案件の単一フィールド補正を設定する。
	SetOverride(ctx context.Context, userID, listingID string, field model.OverrideField, value string) (*model.ListingOverride, error)
	// SetTrackerField はトラッカーの単一フィールドを更新する。
	SetTrackerField(ctx context.Context, userID, listingID string, field model.TrackerField, value string) (*model.DealTracker, error)
	// ListTrackers はユーザーの全トラッカーを返す。
	ListTrackers(ctx context.Context, userID string) ([]*model.DealTracker, error)
}

// TrackHandler は保存・非表示・補正・トラッカー操作のHTTPハンドラー。
type TrackHandler struct {
	service TrackServiceInterface
}

// NewTrackHandler はTrackHandlerを生成する。
func NewTrackHandler(service TrackServiceInterface) *TrackHandler {
	return &TrackHandler{service: service}
}

// fieldValueRequest はフィールド更新リクエストのボディ。
type fieldValueRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// toggleResponse はトグル操作のAPIレスポンス。
type toggleResponse struct {
	ListingID string `json:"listing_id"`
	Active    bool   `json:"active"`
}

// overrideResponse はオーバーライドのAPIレスポンス。
type overrideResponse struct {
	ListingID string   `json:"listing_id"`
	Title     *string  `json:"title"`
	Price     *float64 `json:"price"`
	Revenue   *float64 `json:"revenue"`
	EBITDA    *float64 `json:"ebitda"`
	Multiple  *float64 `json:"multiple"`
}

// trackerResponse はディールトラッカーのAPIレスポンス。
type trackerResponse struct {
	ListingID   string `json:"listing_id"`
	Status      string `json:"status"`
	NextSteps   string `json:"next_steps"`
	Priority    string `json:"priority"`
	Notes       string `json:"notes"`
	LastUpdated string `json:"last_updated"`
}

// ToggleSave は案件の保存状態を反転する。
// PUT /api/listings/:id/save
func (h *TrackHandler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listingID := chi.URLParam(r, "id")

	active, err := h.service.ToggleSave(r.Context(), userID, listingID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toggleResponse{ListingID: listingID, Active: active})
}

// ToggleHide は案件の非表示状態を反転する。
// PUT /api/listings/:id/hide
func (h *TrackHandler) ToggleHide(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listingID := chi.URLParam(r, "id")

	active, err := h.service.ToggleHide(r.Context(), userID, listingID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toggleResponse{ListingID: listingID, Active: active})
}

// SetOverride は案件の単一フィールド補正を設定する。
// PUT /api/listings/:id/override
func (h *TrackHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listingID := chi.URLParam(r, "id")

	var req fieldValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	ov, err := h.service.SetOverride(r.Context(), userID, listingID, model.OverrideField(req.Field), req.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(overrideResponse{
		ListingID: ov.ListingID,
		Title:     ov.Title,
		Price:     ov.Price,
		Revenue:   ov.Revenue,
		EBITDA:    ov.EBITDA,
		Multiple:  ov.Multiple,
	})
}

// SetTrackerField はトラッカーの単一フィールドを更新する。
// PUT /api/listings/:id/tracker
func (h *TrackHandler) SetTrackerField(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	listingID := chi.URLParam(r, "id")

	var req fieldValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	tracker, err := h.service.SetTrackerField(r.Context(), userID, listingID, model.TrackerField(req.Field), req.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTrackerResponse(tracker))
}

// ListTrackers はユーザーの全トラッカーを返す。
// GET /api/trackers
func (h *TrackHandler) ListTrackers(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	trackers, err := h.service.ListTrackers(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]trackerResponse, 0, len(trackers))
	for _, t := range trackers {
		items = append(items, toTrackerResponse(t))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// SetupTrackRoutes はユーザー操作関連のルーティングを設定したchi.Routerを返す。
func SetupTrackRoutes(service TrackServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewTrackHandler(service)

	r.Route("/api/listings/{id}", func(r chi.Router) {
		r.Put("/save", h.ToggleSave)
		r.Put("/hide", h.ToggleHide)
		r.Put("/override", h.SetOverride)
		r.Put("/tracker", h.SetTrackerField)
	})
	r.Get("/api/trackers", h.ListTrackers)

	return r
}

// toTrackerResponse はmodel.DealTrackerからAPIレスポンスに変換する。
func toTrackerResponse(t *model.DealTracker) trackerResponse {
	return trackerResponse{
		ListingID:   t.ListingID,
		Status:      t.Status,
		NextSteps:   t.NextSteps,
		Priority:    t.Priority,
		Notes:       t.Notes,
		LastUpdated: t.LastUpdated.UTC().Format(time.RFC3339),
	}
}

package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dealsight/dealsight/internal/model"
)

// webhookMaxBodyBytes はWebhookリクエストボディの上限サイズ。
const webhookMaxBodyBytes = 1 << 20

// WebhookProcessor はWebhookハンドラーが必要とする処理インターフェース。
// webhook.Serviceで実装される。
type WebhookProcessor interface {
	// HandleEvent は署名検証済みのイベントペイロードを処理する。
	HandleEvent(ctx context.Context, payload []byte, headers http.Header) error
}

// WebhookHandler はIdPからのユーザー同期WebhookのHTTPハンドラー。
type WebhookHandler struct {
	processor WebhookProcessor
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// HandleClerkWebhook はIdPのユーザーライフサイクルイベントを受信する。
// POST /webhooks/clerk
//
// 署名検証失敗は400を返す。IdP側が再送を打ち切らないよう、
// 処理済み・未知のイベントには常に204を返す。
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBodyBytes))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewWebhookInvalidError("ボディの読み取りに失敗しました"))
		return
	}

	if err := h.processor.HandleEvent(r.Context(), payload, r.Header); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetupWebhookRoutes はWebhook受信のルーティングを設定したchi.Routerを返す。
func SetupWebhookRoutes(processor WebhookProcessor) http.Handler {
	r := chi.NewRouter()
	h := NewWebhookHandler(processor)

	r.Post("/webhooks/clerk", h.HandleClerkWebhook)

	return r
}

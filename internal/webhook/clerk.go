// Package webhook は外部IdPからのユーザー同期Webhookの検証と処理を提供する。
//
// ユーザーのライフサイクル（作成・更新・削除）はIdP側で発生し、
// このアプリケーションはWebhookイベントを受けてローカルのユーザーレコードを同期する。
// 署名検証に失敗したリクエストは一切処理しない。
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/dealsight/dealsight/internal/model"
	"github.com/dealsight/dealsight/internal/repository"
)

// イベント種別
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// 新規ユーザーの既定サブスクリプション
const (
	defaultSubscriptionTier   = "free"
	defaultSubscriptionStatus = "active"
)

// StateInvalidator はユーザー削除時にメモリ上の状態を破棄するインターフェース。
// track.Serviceで実装される。
type StateInvalidator interface {
	InvalidateUser(userID string)
}

// MetricsRecorder はWebhookイベントのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordWebhookEvent(eventType string, success bool)
}

// event はIdPのWebhookペイロードの外側の構造。
type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// userData はuser.*イベントのデータ部。
type userData struct {
	ID                    string         `json:"id"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	EmailAddresses        []emailAddress `json:"email_addresses"`
}

// emailAddress はIdPに登録されたメールアドレス1件を表す。
type emailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// Service はWebhookイベントの署名検証とユーザー同期を提供する。
type Service struct {
	wh          *svix.Webhook
	userRepo    repository.UserRepository
	prefsRepo   repository.PreferencesRepository
	invalidator StateInvalidator // nil許容
	metrics     MetricsRecorder  // nil許容
	logger      *slog.Logger
}

// NewService はWebhook処理サービスを生成する。
// signingSecretはIdPのダッシュボードで発行される共有シークレットを指定する。
func NewService(
	signingSecret string,
	userRepo repository.UserRepository,
	prefsRepo repository.PreferencesRepository,
	invalidator StateInvalidator,
	metrics MetricsRecorder,
	logger *slog.Logger,
) (*Service, error) {
	wh, err := svix.NewWebhook(signingSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook署名シークレットの読み込みに失敗しました: %w", err)
	}
	return &Service{
		wh:          wh,
		userRepo:    userRepo,
		prefsRepo:   prefsRepo,
		invalidator: invalidator,
		metrics:     metrics,
		logger:      logger,
	}, nil
}

// record はWebhookイベントの処理結果をメトリクスに記録する。
func (s *Service) record(eventType string, success bool) {
	if s.metrics != nil {
		s.metrics.RecordWebhookEvent(eventType, success)
	}
}

// HandleEvent は署名を検証した上でWebhookイベントを処理する。
// 署名・ペイロードが不正な場合はAPIError(WEBHOOK_INVALID)を返す。
// 未知のイベント種別はエラーにせず無視する（IdP側の新イベント追加に耐えるため）。
func (s *Service) HandleEvent(ctx context.Context, payload []byte, headers http.Header) error {
	if err := s.wh.Verify(payload, headers); err != nil {
		s.logger.Warn("webhook署名の検証に失敗しました",
			slog.String("error", err.Error()),
		)
		s.record("unknown", false)
		return model.NewWebhookInvalidError("署名が一致しません")
	}

	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.record("unknown", false)
		return model.NewWebhookInvalidError("ペイロードを解析できません")
	}

	switch ev.Type {
	case EventUserCreated:
		return s.handleUserCreated(ctx, ev)
	case EventUserUpdated:
		return s.handleUserUpdated(ctx, ev)
	case EventUserDeleted:
		return s.handleUserDeleted(ctx, ev)
	default:
		s.logger.Debug("未対応のwebhookイベントを無視します",
			slog.String("event_type", ev.Type),
		)
		s.record(ev.Type, true)
		return nil
	}
}

// handleUserCreated はユーザーレコードと既定のアラート設定を作成する。
func (s *Service) handleUserCreated(ctx context.Context, ev event) error {
	data, err := parseUserData(ev.Data)
	if err != nil {
		s.record(ev.Type, false)
		return err
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:                 data.ID,
		Email:              data.primaryEmail(),
		SubscriptionTier:   defaultSubscriptionTier,
		SubscriptionStatus: defaultSubscriptionStatus,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.userRepo.Upsert(ctx, user); err != nil {
		s.record(ev.Type, false)
		return fmt.Errorf("ユーザーの同期に失敗しました: %w", err)
	}

	if err := s.prefsRepo.Upsert(ctx, model.DefaultPreferences(user.ID, user.Email, now)); err != nil {
		s.record(ev.Type, false)
		return fmt.Errorf("既定のアラート設定の作成に失敗しました: %w", err)
	}

	s.logger.Info("ユーザーを同期しました",
		slog.String("user_id", user.ID),
		slog.String("event_type", ev.Type),
	)
	s.record(ev.Type, true)
	return nil
}

// handleUserUpdated はユーザーレコードを更新する。
// Webhookペイロードに契約情報は含まれないため、既存ユーザーの
// 契約ティア・ステータスは上書きせず保持する。
// 既存のアラート設定はユーザーのカスタマイズを保持したままメールのみ追随させる。
func (s *Service) handleUserUpdated(ctx context.Context, ev event) error {
	data, err := parseUserData(ev.Data)
	if err != nil {
		s.record(ev.Type, false)
		return err
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:                 data.ID,
		Email:              data.primaryEmail(),
		SubscriptionTier:   defaultSubscriptionTier,
		SubscriptionStatus: defaultSubscriptionStatus,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	existing, err := s.userRepo.FindByID(ctx, data.ID)
	if err != nil {
		s.record(ev.Type, false)
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		user.SubscriptionTier = existing.SubscriptionTier
		user.SubscriptionStatus = existing.SubscriptionStatus
		user.CreatedAt = existing.CreatedAt
	}

	if err := s.userRepo.Upsert(ctx, user); err != nil {
		s.record(ev.Type, false)
		return fmt.Errorf("ユーザーの同期に失敗しました: %w", err)
	}

	prefs, err := s.prefsRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		s.record(ev.Type, false)
		return fmt.Errorf("アラート設定の取得に失敗しました: %w", err)
	}
	if prefs != nil && prefs.Email != user.Email {
		prefs.Email = user.Email
		prefs.UpdatedAt = now
		if err := s.prefsRepo.Upsert(ctx, prefs); err != nil {
			s.record(ev.Type, false)
			return fmt.Errorf("アラート設定のメール更新に失敗しました: %w", err)
		}
	}

	s.logger.Info("ユーザーを同期しました",
		slog.String("user_id", user.ID),
		slog.String("event_type", ev.Type),
	)
	s.record(ev.Type, true)
	return nil
}

// handleUserDeleted はユーザーレコードと関連データを削除する。
// 保存・非表示・設定・トラッカーはDBのCASCADEで削除される。
// 既に削除済みのユーザーはエラーにしない（IdPの再配信に耐えるため）。
func (s *Service) handleUserDeleted(ctx context.Context, ev event) error {
	var data struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil || data.ID == "" {
		s.record(ev.Type, false)
		return model.NewWebhookInvalidError("ユーザーIDを解析できません")
	}

	if err := s.userRepo.DeleteByID(ctx, data.ID); err != nil {
		s.logger.Warn("ユーザー削除をスキップしました",
			slog.String("user_id", data.ID),
			slog.String("error", err.Error()),
		)
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateUser(data.ID)
	}

	s.logger.Info("ユーザーを削除しました",
		slog.String("user_id", data.ID),
		slog.String("event_type", ev.Type),
	)
	s.record(ev.Type, true)
	return nil
}

// parseUserData はuser.*イベントのデータ部を解析する。
func parseUserData(raw json.RawMessage) (*userData, error) {
	var data userData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, model.NewWebhookInvalidError("ユーザーデータを解析できません")
	}
	if data.ID == "" {
		return nil, model.NewWebhookInvalidError("ユーザーIDが空です")
	}
	return &data, nil
}

// primaryEmail はプライマリに指定されたメールアドレスを返す。
// 見つからない場合は最初のアドレスにフォールバックし、1件もなければ空文字を返す。
func (d *userData) primaryEmail() string {
	for _, ea := range d.EmailAddresses {
		if ea.ID == d.PrimaryEmailAddressID {
			return ea.EmailAddress
		}
	}
	if len(d.EmailAddresses) > 0 {
		return d.EmailAddresses[0].EmailAddress
	}
	return ""
}

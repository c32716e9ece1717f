// Package alert は新着案件アラートのバックグラウンド配信処理を提供する。
// スケジューラは定期的に配信対象ユーザーを抽出し、
// 条件にマッチする新着案件のダイジェストをメールで配信する。
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dealsight/dealsight/internal/alert"
	"github.com/dealsight/dealsight/internal/listing"
	"github.com/dealsight/dealsight/internal/model"
	"github.com/dealsight/dealsight/internal/repository"
)

// DefaultInterval はスケジューラの既定の実行間隔。
const DefaultInterval = 1 * time.Hour

// defaultLookback はlast_alert_atが未記録のユーザーに適用する初回の遡り幅。
const defaultLookback = 24 * time.Hour

// MetricsRecorder はアラート配信のメトリクス記録インターフェース。
// metrics.Collectorで実装される。
type MetricsRecorder interface {
	RecordAlertDelivery(frequency string, success bool)
}

// InsightsGenerator はダイジェストに添えるマーケットサマリーの生成インターフェース。
type InsightsGenerator interface {
	Generate(ctx context.Context, listings []model.Listing) ([]string, error)
}

// Scheduler はアラートダイジェストのスケジューリングと配信を行う。
// ティッカー間隔で配信対象ユーザーを取得し、
// semaphoreパターンで最大並列数を制御しながら配信を実行する。
type Scheduler struct {
	prefsRepo      repository.PreferencesRepository
	alertRepo      repository.AlertRepository
	listingRepo    repository.ListingRepository
	normalizer     *listing.Normalizer
	renderer       *alert.Renderer
	sender         alert.Sender
	insights       InsightsGenerator // nil許容
	metrics        MetricsRecorder   // nil許容
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	prefsRepo repository.PreferencesRepository,
	alertRepo repository.AlertRepository,
	listingRepo repository.ListingRepository,
	normalizer *listing.Normalizer,
	renderer *alert.Renderer,
	sender alert.Sender,
	insights InsightsGenerator,
	metrics MetricsRecorder,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		prefsRepo:      prefsRepo,
		alertRepo:      alertRepo,
		listingRepo:    listingRepo,
		normalizer:     normalizer,
		renderer:       renderer,
		sender:         sender,
		insights:       insights,
		metrics:        metrics,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("アラートスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("アラートサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("アラートスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("アラートサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は配信対象ユーザーを1回取得し、並列でダイジェストを配信する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	now := start.UTC()

	due, err := s.prefsRepo.ListDueForAlert(ctx, now)
	if err != nil {
		return err
	}

	if len(due) == 0 {
		s.logger.Info("配信対象のユーザーはありません")
		return nil
	}

	s.logger.Info("アラートサイクルを開始します",
		slog.Int("user_count", len(due)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, prefs := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(p *model.UserPreferences) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.deliverDigest(ctx, p, now); err != nil {
				s.logger.Error("ダイジェストの配信に失敗しました",
					slog.String("user_id", p.UserID),
					slog.String("error", err.Error()),
				)
			}
		}(prefs)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("アラートサイクルが完了しました",
		slog.Int("user_count", len(due)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// deliverDigest は1ユーザー分のダイジェストを生成して配信する。
// マッチする新着案件がない場合は配信せず、last_alert_atも更新しない。
// 配信成功時のみlast_alert_atを記録し、失敗時は次回の実行で再試行させる。
func (s *Scheduler) deliverDigest(ctx context.Context, prefs *model.UserPreferences, now time.Time) error {
	since := now.Add(-defaultLookback)
	if prefs.LastAlertAt != nil {
		since = *prefs.LastAlertAt
	}

	raws, err := s.listingRepo.ListFirstSeenSince(ctx, since)
	if err != nil {
		return err
	}
	if len(raws) == 0 {
		return nil
	}

	alerts, err := s.alertRepo.ListByUser(ctx, prefs.UserID)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		// アラート未定義のユーザーにはアラート設定の価格帯・業種を条件として使う
		alerts = []*model.Alert{preferencesAlert(prefs)}
	}

	var matched []model.RawListing
	for _, raw := range raws {
		r := raw
		if alert.MatchesAny(&r, alerts) {
			matched = append(matched, raw)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	listings := s.normalizer.NormalizeAll(matched, now)

	// サマリー生成は任意。失敗してもダイジェスト本体の配信は継続する
	var insights []string
	if s.insights != nil {
		insights, err = s.insights.Generate(ctx, listings)
		if err != nil {
			s.logger.Warn("マーケットサマリーの生成に失敗しました",
				slog.String("user_id", prefs.UserID),
				slog.String("error", err.Error()),
			)
			insights = nil
		}
	}

	digest, err := s.renderer.Render(listings, insights)
	if err != nil {
		return err
	}

	frequency := string(prefs.AlertFrequency)
	if err := s.sender.Send(prefs.Email, digest); err != nil {
		s.recordDelivery(frequency, false)
		return err
	}
	s.recordDelivery(frequency, true)

	if err := s.prefsRepo.UpdateLastAlertAt(ctx, prefs.UserID, now); err != nil {
		// 配信自体は成功している。次回重複配信の可能性があるためログに残す
		s.logger.Error("配信時刻の記録に失敗しました",
			slog.String("user_id", prefs.UserID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("ダイジェストを配信しました",
		slog.String("user_id", prefs.UserID),
		slog.Int("listing_count", len(listings)),
		slog.String("frequency", frequency),
	)
	return nil
}

// preferencesAlert はアラート設定からフォールバックのアラート条件を構築する。
func preferencesAlert(prefs *model.UserPreferences) *model.Alert {
	a := &model.Alert{UserID: prefs.UserID}
	if prefs.MinPrice > 0 {
		min := prefs.MinPrice
		a.MinPrice = &min
	}
	if prefs.MaxPrice > 0 {
		max := prefs.MaxPrice
		a.MaxPrice = &max
	}
	a.BusinessTypes = prefs.Industries
	return a
}

// recordDelivery は配信結果をメトリクスに記録する。
func (s *Scheduler) recordDelivery(frequency string, success bool) {
	if s.metrics != nil {
		s.metrics.RecordAlertDelivery(frequency, success)
	}
}

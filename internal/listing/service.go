package listing

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/dealsight/dealsight/internal/model"
	"github.com/dealsight/dealsight/internal/repository"
)

// defaultFetchTimeout は全量スナップショット取得のデフォルトタイムアウト。
// カタログの一括読み取りはカタログサイズに比例するため必ず上限を設ける。
const defaultFetchTimeout = 10 * time.Second

// SnapshotCache は正規化済みスナップショットのキャッシュインターフェース。
// cache.ListingCacheで実装される。
type SnapshotCache interface {
	// GetSnapshot はキャッシュ済みスナップショットを返す。
	// キャッシュミスの場合は(nil, false, nil)を返す。
	GetSnapshot(ctx context.Context) ([]model.Listing, bool, error)
	// SetSnapshot はスナップショットをTTL付きで保存する。
	SetSnapshot(ctx context.Context, listings []model.Listing) error
	// Invalidate はキャッシュを破棄する。
	Invalidate(ctx context.Context) error
}

// MetricsRecorder はパイプラインのメトリクス記録インターフェース。
// metrics.Collectorで実装される。
type MetricsRecorder interface {
	RecordSnapshotLoad(source string)
	RecordPipelineLatency(d time.Duration)
}

// BrowseResult は一覧パイプラインの実行結果を表す。
type BrowseResult struct {
	Page Page
	// SavedIDs はユーザーが保存済みの案件ID集合。
	// ページ内の案件の保存フラグ表示に使用する。
	SavedIDs map[string]bool
}

// Service は案件一覧のコアパイプラインを提供する。
// スナップショット取得 → オーバーライド適用 → 非表示除外 →
// フィルタ → ソート → ページネーション を単一の操作として合成する。
type Service struct {
	listingRepo  repository.ListingRepository
	savedRepo    repository.SavedListingRepository
	hiddenRepo   repository.HiddenListingRepository
	overrideRepo repository.ListingOverrideRepository
	normalizer   *Normalizer
	cache        SnapshotCache   // nil許容（キャッシュなしで動作する）
	metrics      MetricsRecorder // nil許容
	logger       *slog.Logger
	fetchTimeout time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
// cacheとmetricsはnilを許容する。fetchTimeoutが0以下の場合はデフォルト値を使用する。
func NewService(
	listingRepo repository.ListingRepository,
	savedRepo repository.SavedListingRepository,
	hiddenRepo repository.HiddenListingRepository,
	overrideRepo repository.ListingOverrideRepository,
	normalizer *Normalizer,
	cache SnapshotCache,
	metrics MetricsRecorder,
	logger *slog.Logger,
	fetchTimeout time.Duration,
) *Service {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Service{
		listingRepo:  listingRepo,
		savedRepo:    savedRepo,
		hiddenRepo:   hiddenRepo,
		overrideRepo: overrideRepo,
		normalizer:   normalizer,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		fetchTimeout: fetchTimeout,
	}
}

// Browse は一覧パイプラインを実行する。
// フィルタは常に全量スナップショットから再評価される。
func (s *Service) Browse(
	ctx context.Context,
	userID string,
	criteria model.FilterCriteria,
	page, pageSize int,
) (*BrowseResult, error) {
	start := time.Now()

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	hidden, err := s.hiddenRepo.ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	saved, err := s.savedRepo.ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.overrideRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// オーバーライドはフィルタ前に適用する。
	// ユーザーが補正した価格・売上で絞り込めること。
	visible := make([]model.Listing, 0, len(snapshot))
	for _, l := range snapshot {
		if hidden[l.ID] {
			continue
		}
		if ov, ok := overrides[l.ID]; ok {
			applyOverride(&l, ov)
		}
		visible = append(visible, l)
	}

	filtered := Filter(visible, criteria)
	sorted := Sort(filtered, criteria.Sort)
	result := Paginate(sorted, page, pageSize)

	if s.metrics != nil {
		s.metrics.RecordPipelineLatency(time.Since(start))
	}

	return &BrowseResult{Page: result, SavedIDs: saved}, nil
}

// GetDetail は案件詳細をユーザーのオーバーライド適用済みで返す。
// 見つからない場合・ユーザーが非表示にしている場合はLISTING_NOT_FOUNDを返す。
func (s *Service) GetDetail(ctx context.Context, userID, listingID string) (*model.Listing, bool, error) {
	raw, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, model.NewListingNotFoundError(listingID)
	}

	l := s.normalizer.Normalize(*raw, time.Now().UTC())

	ov, err := s.overrideRepo.FindByUserAndListing(ctx, userID, listingID)
	if err != nil {
		return nil, false, err
	}
	if ov != nil {
		applyOverride(&l, ov)
	}

	saved, err := s.savedRepo.ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	return &l, saved[listingID], nil
}

// Snapshot は正規化済みの全量スナップショットを返す。
// キャッシュヒット時はDBアクセスを行わない。
// DB読み取りにはfetchTimeoutを上限とするコンテキストを使用する。
func (s *Service) Snapshot(ctx context.Context) ([]model.Listing, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetSnapshot(ctx)
		if err != nil {
			// キャッシュ障害はDBフォールバックで継続する
			s.logger.Warn("snapshot cache read failed",
				slog.String("error", err.Error()),
			)
		} else if ok {
			if s.metrics != nil {
				s.metrics.RecordSnapshotLoad("cache")
			}
			return cached, nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	raws, err := s.listingRepo.ListActive(fetchCtx)
	if err != nil {
		return nil, err
	}

	listings := s.normalizer.NormalizeAll(raws, time.Now().UTC())

	if s.cache != nil {
		if err := s.cache.SetSnapshot(ctx, listings); err != nil {
			s.logger.Warn("snapshot cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordSnapshotLoad("db")
	}

	return listings, nil
}

// Refresh はキャッシュを破棄してスナップショットを再取得する。
// 明示的なリフレッシュ操作および可視化復帰時の再同期に使用する。
func (s *Service) Refresh(ctx context.Context) error {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("snapshot cache invalidate failed",
				slog.String("error", err.Error()),
			)
		}
	}
	_, err := s.Snapshot(ctx)
	return err
}

// applyOverride はユーザー固有のフィールド補正を案件に適用する。
// 年次の売上・EBITDA補正は正規化境界と同じ1/12換算で月次に反映する。
func applyOverride(l *model.Listing, ov *model.ListingOverride) {
	if ov.Title != nil {
		l.Title = *ov.Title
	}
	if ov.Price != nil {
		l.Price = *ov.Price
	}
	if ov.Revenue != nil {
		l.MonthlyRevenue = math.Round(*ov.Revenue / 12)
	}
	if ov.EBITDA != nil {
		l.MonthlyProfit = math.Round(*ov.EBITDA / 12)
	}
	if ov.Multiple != nil {
		l.Multiple = *ov.Multiple
	}
}

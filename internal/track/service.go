// Package track は案件に対するユーザー操作（保存・非表示・補正・トラッカー）を提供する。
//
// 全ての書き込みは楽観的に適用される。ローカル状態を先に更新し、
// 永続化に失敗した場合は呼び出し前の値に復元した上でエラーを返す。
// 同一の(ユーザー, 案件)に対する操作は直列化され、
// 連打による状態の取り違え（トグルの競合）は発生しない。
package track

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dealsight/dealsight/internal/model"
	"github.com/dealsight/dealsight/internal/repository"
)

// MetricsRecorder はミューテーションのメトリクス記録インターフェース。
// metrics.Collectorで実装される。
type MetricsRecorder interface {
	RecordMutation(op string, success bool)
	RecordRollback(op string)
}

// Service は案件に対するユーザー操作を提供する。
type Service struct {
	savedRepo    repository.SavedListingRepository
	hiddenRepo   repository.HiddenListingRepository
	overrideRepo repository.ListingOverrideRepository
	trackerRepo  repository.DealTrackerRepository
	metrics      MetricsRecorder // nil許容
	logger       *slog.Logger

	// guards は(ユーザー, 案件)ごとの操作直列化ロック。
	guards sync.Map // key: userID + "\x00" + listingID, value: *sync.Mutex

	// states はユーザーごとの楽観的な保存・非表示状態。
	// 初回操作時にリポジトリから遅延ロードされる。
	mu     sync.Mutex
	states map[string]*userState
}

// userState はユーザーの保存・非表示メンバーシップのローカルコピー。
type userState struct {
	saved  map[string]bool
	hidden map[string]bool
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilを許容する。
func NewService(
	savedRepo repository.SavedListingRepository,
	hiddenRepo repository.HiddenListingRepository,
	overrideRepo repository.ListingOverrideRepository,
	trackerRepo repository.DealTrackerRepository,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		savedRepo:    savedRepo,
		hiddenRepo:   hiddenRepo,
		overrideRepo: overrideRepo,
		trackerRepo:  trackerRepo,
		metrics:      metrics,
		logger:       logger,
		states:       make(map[string]*userState),
	}
}

// lockEntity は(ユーザー, 案件)の操作ロックを取得する。
// 返り値の関数で解放する。
func (s *Service) lockEntity(userID, listingID string) func() {
	key := userID + "\x00" + listingID
	v, _ := s.guards.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// loadState はユーザーの保存・非表示状態を返す。未ロードの場合はリポジトリから取得する。
func (s *Service) loadState(ctx context.Context, userID string) (*userState, error) {
	s.mu.Lock()
	state, ok := s.states[userID]
	s.mu.Unlock()
	if ok {
		return state, nil
	}

	saved, err := s.savedRepo.ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	hidden, err := s.hiddenRepo.ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// ロード中に別の操作が先に登録した場合はそちらを使う
	if existing, ok := s.states[userID]; ok {
		return existing, nil
	}
	state = &userState{saved: saved, hidden: hidden}
	s.states[userID] = state
	return state, nil
}

// record はミューテーションの結果をメトリクスに記録する。
func (s *Service) record(op string, success bool) {
	if s.metrics != nil {
		s.metrics.RecordMutation(op, success)
	}
}

// recordRollback はロールバック発生をメトリクスに記録する。
func (s *Service) recordRollback(op string) {
	if s.metrics != nil {
		s.metrics.RecordRollback(op)
	}
}

// ToggleSave は案件の保存状態を反転する。反転後の状態を返す。
// 永続化に失敗した場合は状態を復元してMUTATION_FAILEDを返す。
func (s *Service) ToggleSave(ctx context.Context, userID, listingID string) (bool, error) {
	unlock := s.lockEntity(userID, listingID)
	defer unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		s.record("save", false)
		return false, err
	}

	s.mu.Lock()
	wasSaved := state.saved[listingID]
	nowSaved := !wasSaved
	state.saved[listingID] = nowSaved
	s.mu.Unlock()

	if nowSaved {
		err = s.savedRepo.Upsert(ctx, userID, listingID)
	} else {
		err = s.savedRepo.Delete(ctx, userID, listingID)
	}
	if err != nil {
		// 復元。呼び出し側から見ると操作は一切起きていない
		s.mu.Lock()
		state.saved[listingID] = wasSaved
		s.mu.Unlock()

		s.logger.Error("保存状態の永続化に失敗しました",
			slog.String("user_id", userID),
			slog.String("listing_id", listingID),
			slog.String("error", err.Error()),
		)
		s.recordRollback("save")
		s.record("save", false)
		return wasSaved, model.NewMutationFailedError("save")
	}

	s.record("save", true)
	return nowSaved, nil
}

// ToggleHide は案件の非表示状態を反転する。反転後の状態を返す。
func (s *Service) ToggleHide(ctx context.Context, userID, listingID string) (bool, error) {
	unlock := s.lockEntity(userID, listingID)
	defer unlock()

	state, err := s.loadState(ctx, userID)
	if err != nil {
		s.record("hide", false)
		return false, err
	}

	s.mu.Lock()
	wasHidden := state.hidden[listingID]
	nowHidden := !wasHidden
	state.hidden[listingID] = nowHidden
	s.mu.Unlock()

	if nowHidden {
		err = s.hiddenRepo.Upsert(ctx, userID, listingID)
	} else {
		err = s.hiddenRepo.Delete(ctx, userID, listingID)
	}
	if err != nil {
		s.mu.Lock()
		state.hidden[listingID] = wasHidden
		s.mu.Unlock()

		s.logger.Error("非表示状態の永続化に失敗しました",
			slog.String("user_id", userID),
			slog.String("listing_id", listingID),
			slog.String("error", err.Error()),
		)
		s.recordRollback("hide")
		s.record("hide", false)
		return wasHidden, model.NewMutationFailedError("hide")
	}

	s.record("hide", true)
	return nowHidden, nil
}

// SetOverride は案件の単一フィールド補正を設定する。
// 編集可能フィールド以外はINVALID_FIELDを返す。
// 数値フィールドに数値として解釈できない値が渡された場合はINVALID_REQUESTを返す。
func (s *Service) SetOverride(ctx context.Context, userID, listingID string, field model.OverrideField, value string) (*model.ListingOverride, error) {
	if !field.IsValid() {
		s.record("override", false)
		return nil, model.NewInvalidFieldError(string(field))
	}

	unlock := s.lockEntity(userID, listingID)
	defer unlock()

	now := time.Now().UTC()

	existing, err := s.overrideRepo.FindByUserAndListing(ctx, userID, listingID)
	if err != nil {
		s.record("override", false)
		return nil, err
	}

	ov := existing
	if ov == nil {
		ov = &model.ListingOverride{
			ID:        uuid.New().String(),
			UserID:    userID,
			ListingID: listingID,
			CreatedAt: now,
		}
	}
	ov.UpdatedAt = now

	if field == model.OverrideFieldTitle {
		ov.Title = &value
	} else {
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			s.record("override", false)
			return nil, model.NewInvalidRequestError("数値フィールドには数値を指定してください")
		}
		switch field {
		case model.OverrideFieldPrice:
			ov.Price = &n
		case model.OverrideFieldRevenue:
			ov.Revenue = &n
		case model.OverrideFieldEBITDA:
			ov.EBITDA = &n
		case model.OverrideFieldMultiple:
			ov.Multiple = &n
		}
	}

	if err := s.overrideRepo.Upsert(ctx, ov); err != nil {
		s.logger.Error("オーバーライドの永続化に失敗しました",
			slog.String("user_id", userID),
			slog.String("listing_id", listingID),
			slog.String("field", string(field)),
			slog.String("error", err.Error()),
		)
		s.record("override", false)
		return nil, model.NewMutationFailedError("override")
	}

	s.record("override", true)
	return ov, nil
}

// SetTrackerField はトラッカーの単一フィールドを更新する。
// トラッカーが存在しない場合は既定値で作成した上でフィールドを適用する。
func (s *Service) SetTrackerField(ctx context.Context, userID, listingID string, field model.TrackerField, value string) (*model.DealTracker, error) {
	if !field.IsValid() {
		s.record("tracker", false)
		return nil, model.NewInvalidFieldError(string(field))
	}

	unlock := s.lockEntity(userID, listingID)
	defer unlock()

	now := time.Now().UTC()

	tracker, err := s.trackerRepo.FindByUserAndListing(ctx, userID, listingID)
	if err != nil {
		s.record("tracker", false)
		return nil, err
	}

	if tracker == nil {
		tracker = &model.DealTracker{
			ID:        uuid.New().String(),
			UserID:    userID,
			ListingID: listingID,
			Status:    model.TrackerDefaultStatus,
			NextSteps: model.TrackerDefaultNextSteps,
			Priority:  model.TrackerDefaultPriority,
			CreatedAt: now,
		}
	}
	tracker.LastUpdated = now

	switch field {
	case model.TrackerFieldStatus:
		tracker.Status = value
	case model.TrackerFieldNextSteps:
		tracker.NextSteps = value
	case model.TrackerFieldPriority:
		tracker.Priority = value
	case model.TrackerFieldNotes:
		tracker.Notes = value
	}

	if err := s.trackerRepo.Upsert(ctx, tracker); err != nil {
		s.logger.Error("トラッカーの永続化に失敗しました",
			slog.String("user_id", userID),
			slog.String("listing_id", listingID),
			slog.String("field", string(field)),
			slog.String("error", err.Error()),
		)
		s.record("tracker", false)
		return nil, model.NewMutationFailedError("tracker")
	}

	s.record("tracker", true)
	return tracker, nil
}

// ListTrackers はユーザーの全トラッカーを返す。
func (s *Service) ListTrackers(ctx context.Context, userID string) ([]*model.DealTracker, error) {
	return s.trackerRepo.ListByUser(ctx, userID)
}

// InvalidateUser はユーザーのローカル状態を破棄する。
// Webhookでのユーザー削除時に呼び出す。
func (s *Service) InvalidateUser(userID string) {
	s.mu.Lock()
	delete(s.states, userID)
	s.mu.Unlock()
}

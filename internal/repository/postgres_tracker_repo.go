package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dealsight/dealsight/internal/model"
)

// PostgresTrackerRepo はPostgreSQLを使用したディールトラッカーリポジトリ。
type PostgresTrackerRepo struct {
	db *sql.DB
}

// NewPostgresTrackerRepo はPostgresTrackerRepoを生成する。
func NewPostgresTrackerRepo(db *sql.DB) *PostgresTrackerRepo {
	return &PostgresTrackerRepo{db: db}
}

// FindByUserAndListing はユーザーと案件の組でトラッカーを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresTrackerRepo) FindByUserAndListing(ctx context.Context, userID, listingID string) (*model.DealTracker, error) {
	tracker := &model.DealTracker{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, listing_id, status, next_steps, priority, notes, last_updated, created_at
		 FROM deal_tracker WHERE user_id = $1 AND listing_id = $2`,
		userID, listingID,
	).Scan(
		&tracker.ID, &tracker.UserID, &tracker.ListingID,
		&tracker.Status, &tracker.NextSteps, &tracker.Priority, &tracker.Notes,
		&tracker.LastUpdated, &tracker.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("トラッカーの取得に失敗しました: %w", err)
	}

	return tracker, nil
}

// ListByUser はユーザーの全トラッカーをlast_updated降順で返す。
func (r *PostgresTrackerRepo) ListByUser(ctx context.Context, userID string) ([]*model.DealTracker, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, listing_id, status, next_steps, priority, notes, last_updated, created_at
		 FROM deal_tracker WHERE user_id = $1
		 ORDER BY last_updated DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("トラッカー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var trackers []*model.DealTracker
	for rows.Next() {
		tracker := &model.DealTracker{}
		err := rows.Scan(
			&tracker.ID, &tracker.UserID, &tracker.ListingID,
			&tracker.Status, &tracker.NextSteps, &tracker.Priority, &tracker.Notes,
			&tracker.LastUpdated, &tracker.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("トラッカーの読み取りに失敗しました: %w", err)
		}
		trackers = append(trackers, tracker)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("トラッカー一覧の走査に失敗しました: %w", err)
	}

	return trackers, nil
}

// Upsert はトラッカーを冪等にUPSERTする。
func (r *PostgresTrackerRepo) Upsert(ctx context.Context, tracker *model.DealTracker) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO deal_tracker
		     (id, user_id, listing_id, status, next_steps, priority, notes, last_updated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, listing_id) DO UPDATE SET
		     status = EXCLUDED.status,
		     next_steps = EXCLUDED.next_steps,
		     priority = EXCLUDED.priority,
		     notes = EXCLUDED.notes,
		     last_updated = EXCLUDED.last_updated`,
		tracker.ID, tracker.UserID, tracker.ListingID,
		tracker.Status, tracker.NextSteps, tracker.Priority, tracker.Notes,
		tracker.LastUpdated, tracker.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("トラッカーの保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DealTrackerRepository = (*PostgresTrackerRepo)(nil)

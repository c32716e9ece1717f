package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresHiddenListingRepo はPostgreSQLを使用した非表示案件リポジトリ。
type PostgresHiddenListingRepo struct {
	db *sql.DB
}

// NewPostgresHiddenListingRepo はPostgresHiddenListingRepoを生成する。
func NewPostgresHiddenListingRepo(db *sql.DB) *PostgresHiddenListingRepo {
	return &PostgresHiddenListingRepo{db: db}
}

// ListIDsByUser はユーザーが非表示にした案件IDの集合を返す。
func (r *PostgresHiddenListingRepo) ListIDsByUser(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT listing_id FROM user_hidden_listings WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("非表示案件の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanIDSet(rows)
}

// Upsert は非表示レコードを冪等に作成する。既存の場合は何もしない。
func (r *PostgresHiddenListingRepo) Upsert(ctx context.Context, userID, listingID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_hidden_listings (id, user_id, listing_id, hidden_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, listing_id) DO NOTHING`,
		uuid.New().String(), userID, listingID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("案件の非表示化に失敗しました: %w", err)
	}
	return nil
}

// Delete は非表示レコードを削除する。存在しない場合もエラーにしない。
func (r *PostgresHiddenListingRepo) Delete(ctx context.Context, userID, listingID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_hidden_listings WHERE user_id = $1 AND listing_id = $2`,
		userID, listingID,
	)
	if err != nil {
		return fmt.Errorf("非表示の解除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全非表示レコードを削除する。
func (r *PostgresHiddenListingRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_hidden_listings WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの非表示案件の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ HiddenListingRepository = (*PostgresHiddenListingRepo)(nil)

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresSavedListingRepo はPostgreSQLを使用した保存済み案件リポジトリ。
type PostgresSavedListingRepo struct {
	db *sql.DB
}

// NewPostgresSavedListingRepo はPostgresSavedListingRepoを生成する。
func NewPostgresSavedListingRepo(db *sql.DB) *PostgresSavedListingRepo {
	return &PostgresSavedListingRepo{db: db}
}

// ListIDsByUser はユーザーが保存した案件IDの集合を返す。
func (r *PostgresSavedListingRepo) ListIDsByUser(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT listing_id FROM user_saved_listings WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("保存済み案件の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanIDSet(rows)
}

// Upsert は保存レコードを冪等に作成する。既存の場合は何もしない。
// UNIQUE(user_id, listing_id)制約を利用したINSERT ON CONFLICTで実装する。
func (r *PostgresSavedListingRepo) Upsert(ctx context.Context, userID, listingID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_saved_listings (id, user_id, listing_id, saved_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, listing_id) DO NOTHING`,
		uuid.New().String(), userID, listingID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("案件の保存に失敗しました: %w", err)
	}
	return nil
}

// Delete は保存レコードを削除する。存在しない場合もエラーにしない。
func (r *PostgresSavedListingRepo) Delete(ctx context.Context, userID, listingID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_saved_listings WHERE user_id = $1 AND listing_id = $2`,
		userID, listingID,
	)
	if err != nil {
		return fmt.Errorf("保存の解除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全保存レコードを削除する。
func (r *PostgresSavedListingRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_saved_listings WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの保存済み案件の削除に失敗しました: %w", err)
	}
	return nil
}

// scanIDSet はlisting_idの単一カラム結果を集合に読み取る。
func scanIDSet(rows *sql.Rows) (map[string]bool, error) {
	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("案件IDの読み取りに失敗しました: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("案件IDの走査に失敗しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ SavedListingRepository = (*PostgresSavedListingRepo)(nil)

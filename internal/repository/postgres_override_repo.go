package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dealsight/dealsight/internal/model"
)

// PostgresOverrideRepo はPostgreSQLを使用した案件オーバーライドリポジトリ。
type PostgresOverrideRepo struct {
	db *sql.DB
}

// NewPostgresOverrideRepo はPostgresOverrideRepoを生成する。
func NewPostgresOverrideRepo(db *sql.DB) *PostgresOverrideRepo {
	return &PostgresOverrideRepo{db: db}
}

// FindByUserAndListing はユーザーと案件の組でオーバーライドを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresOverrideRepo) FindByUserAndListing(ctx context.Context, userID, listingID string) (*model.ListingOverride, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, listing_id, title, price, revenue, ebitda, multiple, created_at, updated_at
		 FROM listing_overrides WHERE user_id = $1 AND listing_id = $2`,
		userID, listingID,
	)

	ov, err := scanOverride(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("オーバーライドの取得に失敗しました: %w", err)
	}

	return ov, nil
}

// ListByUser はユーザーの全オーバーライドをlisting_idをキーに返す。
func (r *PostgresOverrideRepo) ListByUser(ctx context.Context, userID string) (map[string]*model.ListingOverride, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, listing_id, title, price, revenue, ebitda, multiple, created_at, updated_at
		 FROM listing_overrides WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("オーバーライド一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	overrides := make(map[string]*model.ListingOverride)
	for rows.Next() {
		ov, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("オーバーライドの読み取りに失敗しました: %w", err)
		}
		overrides[ov.ListingID] = ov
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("オーバーライド一覧の走査に失敗しました: %w", err)
	}

	return overrides, nil
}

// Upsert はオーバーライドを冪等にUPSERTする。
// nilのフィールドはNULLで上書きする（補正の解除を表現する）。
func (r *PostgresOverrideRepo) Upsert(ctx context.Context, override *model.ListingOverride) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO listing_overrides
		     (id, user_id, listing_id, title, price, revenue, ebitda, multiple, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id, listing_id) DO UPDATE SET
		     title = EXCLUDED.title,
		     price = EXCLUDED.price,
		     revenue = EXCLUDED.revenue,
		     ebitda = EXCLUDED.ebitda,
		     multiple = EXCLUDED.multiple,
		     updated_at = EXCLUDED.updated_at`,
		override.ID, override.UserID, override.ListingID,
		override.Title, override.Price, override.Revenue,
		override.EBITDA, override.Multiple,
		override.CreatedAt, override.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("オーバーライドの保存に失敗しました: %w", err)
	}
	return nil
}

// scanOverride は1行をListingOverrideに読み取る。
func scanOverride(row rowScanner) (*model.ListingOverride, error) {
	ov := &model.ListingOverride{}
	var (
		title    sql.NullString
		price    sql.NullFloat64
		revenue  sql.NullFloat64
		ebitda   sql.NullFloat64
		multiple sql.NullFloat64
	)

	err := row.Scan(
		&ov.ID, &ov.UserID, &ov.ListingID,
		&title, &price, &revenue, &ebitda, &multiple,
		&ov.CreatedAt, &ov.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if title.Valid {
		ov.Title = &title.String
	}
	if price.Valid {
		ov.Price = &price.Float64
	}
	if revenue.Valid {
		ov.Revenue = &revenue.Float64
	}
	if ebitda.Valid {
		ov.EBITDA = &ebitda.Float64
	}
	if multiple.Valid {
		ov.Multiple = &multiple.Float64
	}

	return ov, nil
}

// compile-time interface check
var _ ListingOverrideRepository = (*PostgresOverrideRepo)(nil)

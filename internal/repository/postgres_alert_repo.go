package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/dealsight/dealsight/internal/model"
)

// PostgresAlertRepo はPostgreSQLを使用したアラート条件リポジトリ。
type PostgresAlertRepo struct {
	db *sql.DB
}

// NewPostgresAlertRepo はPostgresAlertRepoを生成する。
func NewPostgresAlertRepo(db *sql.DB) *PostgresAlertRepo {
	return &PostgresAlertRepo{db: db}
}

// ListByUser はユーザーのアラート条件一覧をcreated_at降順で返す。
func (r *PostgresAlertRepo) ListByUser(ctx context.Context, userID string) ([]*model.Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, min_price, max_price, min_revenue, max_revenue,
		        business_types, search_keywords, created_at
		 FROM alerts WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("アラート一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var alerts []*model.Alert
	for rows.Next() {
		alert := &model.Alert{}
		var (
			minPrice      sql.NullFloat64
			maxPrice      sql.NullFloat64
			minRevenue    sql.NullFloat64
			maxRevenue    sql.NullFloat64
			businessTypes pq.StringArray
			keywords      pq.StringArray
		)

		err := rows.Scan(
			&alert.ID, &alert.UserID,
			&minPrice, &maxPrice, &minRevenue, &maxRevenue,
			&businessTypes, &keywords, &alert.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("アラートの読み取りに失敗しました: %w", err)
		}

		if minPrice.Valid {
			alert.MinPrice = &minPrice.Float64
		}
		if maxPrice.Valid {
			alert.MaxPrice = &maxPrice.Float64
		}
		if minRevenue.Valid {
			alert.MinRevenue = &minRevenue.Float64
		}
		if maxRevenue.Valid {
			alert.MaxRevenue = &maxRevenue.Float64
		}
		alert.BusinessTypes = []string(businessTypes)
		alert.SearchKeywords = []string(keywords)

		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アラート一覧の走査に失敗しました: %w", err)
	}

	return alerts, nil
}

// Create はアラート条件を作成する。
func (r *PostgresAlertRepo) Create(ctx context.Context, alert *model.Alert) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts
		     (id, user_id, min_price, max_price, min_revenue, max_revenue, business_types, search_keywords, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		alert.ID, alert.UserID,
		alert.MinPrice, alert.MaxPrice,
		alert.MinRevenue, alert.MaxRevenue,
		pq.Array(alert.BusinessTypes), pq.Array(alert.SearchKeywords),
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("アラートの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete はユーザーのアラート条件を削除する。削除された場合はtrueを返す。
// user_idでスコープすることで他ユーザーのアラートは削除できない。
func (r *PostgresAlertRepo) Delete(ctx context.Context, userID, alertID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE user_id = $1 AND id = $2`,
		userID, alertID,
	)
	if err != nil {
		return false, fmt.Errorf("アラートの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ AlertRepository = (*PostgresAlertRepo)(nil)

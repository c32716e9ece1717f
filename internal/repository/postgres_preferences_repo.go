package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/dealsight/dealsight/internal/model"
)

// PostgresPreferencesRepo はPostgreSQLを使用したアラート設定リポジトリ。
type PostgresPreferencesRepo struct {
	db *sql.DB
}

// NewPostgresPreferencesRepo はPostgresPreferencesRepoを生成する。
func NewPostgresPreferencesRepo(db *sql.DB) *PostgresPreferencesRepo {
	return &PostgresPreferencesRepo{db: db}
}

// FindByUserID はユーザーのアラート設定を取得する。見つからない場合はnilを返す。
func (r *PostgresPreferencesRepo) FindByUserID(ctx context.Context, userID string) (*model.UserPreferences, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, email, min_price, max_price, industries, alert_frequency,
		        last_alert_at, created_at, updated_at
		 FROM user_preferences WHERE user_id = $1`,
		userID,
	)

	prefs, err := scanPreferences(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アラート設定の取得に失敗しました: %w", err)
	}

	return prefs, nil
}

// Upsert はアラート設定を冪等にUPSERTする。
func (r *PostgresPreferencesRepo) Upsert(ctx context.Context, prefs *model.UserPreferences) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_preferences
		     (user_id, email, min_price, max_price, industries, alert_frequency, last_alert_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id) DO UPDATE SET
		     email = EXCLUDED.email,
		     min_price = EXCLUDED.min_price,
		     max_price = EXCLUDED.max_price,
		     industries = EXCLUDED.industries,
		     alert_frequency = EXCLUDED.alert_frequency,
		     updated_at = EXCLUDED.updated_at`,
		prefs.UserID, prefs.Email,
		prefs.MinPrice, prefs.MaxPrice,
		pq.Array(prefs.Industries), string(prefs.AlertFrequency),
		prefs.LastAlertAt, prefs.CreatedAt, prefs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アラート設定の保存に失敗しました: %w", err)
	}
	return nil
}

// ListDueForAlert は配信頻度と前回配信時刻から配信対象のユーザー設定を返す。
// last_alert_atがNULL（未配信）の設定も対象に含める。
func (r *PostgresPreferencesRepo) ListDueForAlert(ctx context.Context, now time.Time) ([]*model.UserPreferences, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, email, min_price, max_price, industries, alert_frequency,
		        last_alert_at, created_at, updated_at
		 FROM user_preferences
		 WHERE last_alert_at IS NULL
		    OR alert_frequency = 'instantly'
		    OR (alert_frequency = 'daily'   AND last_alert_at <= $1 - INTERVAL '1 day')
		    OR (alert_frequency = 'weekly'  AND last_alert_at <= $1 - INTERVAL '7 days')
		    OR (alert_frequency = 'monthly' AND last_alert_at <= $1 - INTERVAL '30 days')`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("配信対象の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var list []*model.UserPreferences
	for rows.Next() {
		prefs, err := scanPreferences(rows)
		if err != nil {
			return nil, fmt.Errorf("アラート設定の読み取りに失敗しました: %w", err)
		}
		list = append(list, prefs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配信対象の走査に失敗しました: %w", err)
	}

	return list, nil
}

// UpdateLastAlertAt は配信成功時刻を記録する。
// 配信に失敗した場合は呼び出さず、次回の実行で再試行させる。
func (r *PostgresPreferencesRepo) UpdateLastAlertAt(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_preferences SET last_alert_at = $2, updated_at = $2 WHERE user_id = $1`,
		userID, at,
	)
	if err != nil {
		return fmt.Errorf("配信時刻の記録に失敗しました: %w", err)
	}
	return nil
}

// scanPreferences は1行をUserPreferencesに読み取る。
func scanPreferences(row rowScanner) (*model.UserPreferences, error) {
	prefs := &model.UserPreferences{}
	var (
		industries  pq.StringArray
		frequency   string
		lastAlertAt sql.NullTime
	)

	err := row.Scan(
		&prefs.UserID, &prefs.Email,
		&prefs.MinPrice, &prefs.MaxPrice,
		&industries, &frequency,
		&lastAlertAt, &prefs.CreatedAt, &prefs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	prefs.Industries = []string(industries)
	if prefs.Industries == nil {
		prefs.Industries = []string{}
	}
	prefs.AlertFrequency = model.AlertFrequency(frequency)
	if lastAlertAt.Valid {
		prefs.LastAlertAt = &lastAlertAt.Time
	}

	return prefs, nil
}

// compile-time interface check
var _ PreferencesRepository = (*PostgresPreferencesRepo)(nil)

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dealsight/dealsight/internal/model"
)

// listingColumns は案件テーブルのSELECT句。全クエリで共通に使用する。
const listingColumns = `id, title, description, asking_price, revenue, ebitda,
	selling_multiple, industry, source_platform, business_age,
	profit_margin, growth_rate, number_of_employees,
	location, original_listing_url, status, first_seen_at, created_at`

// PostgresListingRepo はPostgreSQLを使用した案件リポジトリ。
// 案件の書き込みは上流のインジェストが行うため読み取り専用。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

// ListActive はアクティブな案件全件をcreated_at降順で取得する。
func (r *PostgresListingRepo) ListActive(ctx context.Context) ([]model.RawListing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+`
		 FROM listings
		 WHERE status = 'active'
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("案件一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanRawListings(rows)
}

// FindByID は指定IDの案件を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id string) (*model.RawListing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`,
		id,
	)

	raw, err := scanRawListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("案件の取得に失敗しました: %w", err)
	}

	return raw, nil
}

// ListFirstSeenSince は指定時刻以降に初回観測されたアクティブな案件を返す。
func (r *PostgresListingRepo) ListFirstSeenSince(ctx context.Context, since time.Time) ([]model.RawListing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+`
		 FROM listings
		 WHERE status = 'active' AND first_seen_at >= $1
		 ORDER BY first_seen_at DESC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("新着案件の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanRawListings(rows)
}

// rowScanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRawListing は1行をRawListingに読み取る。
// NULL許容カラムはnilのまま保持し、正規化境界で既定値に変換する。
func scanRawListing(row rowScanner) (*model.RawListing, error) {
	raw := &model.RawListing{}
	var (
		description        sql.NullString
		askingPrice        sql.NullFloat64
		revenue            sql.NullFloat64
		ebitda             sql.NullFloat64
		sellingMultiple    sql.NullFloat64
		industry           sql.NullString
		sourcePlatform     sql.NullString
		businessAge        sql.NullFloat64
		profitMargin       sql.NullFloat64
		growthRate         sql.NullFloat64
		numberOfEmployees  sql.NullFloat64
		location           sql.NullString
		originalListingURL sql.NullString
		status             sql.NullString
		firstSeenAt        sql.NullTime
		createdAt          sql.NullTime
	)

	err := row.Scan(
		&raw.ID, &raw.Title, &description,
		&askingPrice, &revenue, &ebitda, &sellingMultiple,
		&industry, &sourcePlatform, &businessAge,
		&profitMargin, &growthRate, &numberOfEmployees,
		&location, &originalListingURL, &status,
		&firstSeenAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	raw.Description = description.String
	raw.Industry = industry.String
	raw.SourcePlatform = sourcePlatform.String
	raw.Location = location.String
	raw.OriginalListingURL = originalListingURL.String
	raw.Status = status.String

	if askingPrice.Valid {
		raw.AskingPrice = &askingPrice.Float64
	}
	if revenue.Valid {
		raw.Revenue = &revenue.Float64
	}
	if ebitda.Valid {
		raw.EBITDA = &ebitda.Float64
	}
	if sellingMultiple.Valid {
		raw.SellingMultiple = &sellingMultiple.Float64
	}
	if businessAge.Valid {
		raw.BusinessAge = &businessAge.Float64
	}
	if profitMargin.Valid {
		raw.ProfitMargin = &profitMargin.Float64
	}
	if growthRate.Valid {
		raw.GrowthRate = &growthRate.Float64
	}
	if numberOfEmployees.Valid {
		raw.NumberOfEmployees = &numberOfEmployees.Float64
	}
	if firstSeenAt.Valid {
		raw.FirstSeenAt = &firstSeenAt.Time
	}
	if createdAt.Valid {
		raw.CreatedAt = &createdAt.Time
	}

	return raw, nil
}

func scanRawListings(rows *sql.Rows) ([]model.RawListing, error) {
	var listings []model.RawListing
	for rows.Next() {
		raw, err := scanRawListing(rows)
		if err != nil {
			return nil, fmt.Errorf("案件レコードの読み取りに失敗しました: %w", err)
		}
		listings = append(listings, *raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("案件一覧の走査に失敗しました: %w", err)
	}
	return listings, nil
}

// compile-time interface check
var _ ListingRepository = (*PostgresListingRepo)(nil)

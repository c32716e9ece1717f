// Package cache はRedisによるスナップショットキャッシュを提供する。
// 正規化済みの案件スナップショットをJSONで保持し、
// 一覧パイプラインのDB全量読み取りを抑制する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dealsight/dealsight/internal/model"
)

// snapshotKey は正規化済みスナップショットのキャッシュキー。
// スナップショットは全ユーザー共通（ユーザー固有の状態は含まない）。
const snapshotKey = "dealsight:listings:snapshot"

// DefaultSnapshotTTL はスナップショットのデフォルト保持時間。
// インジェストの更新間隔より十分短く設定する。
const DefaultSnapshotTTL = 5 * time.Minute

// ListingCache はRedisを使ったlisting.SnapshotCacheの実装。
type ListingCache struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// New はRedisへ接続してListingCacheを生成する。
// 接続確認（PING）に失敗した場合はエラーを返す。
func New(addr, password string, db int, ttl time.Duration, logger *slog.Logger) (*ListingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redisへの接続に失敗しました: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}

	logger.Info("Redisに接続しました", slog.String("addr", addr))

	return &ListingCache{
		client: client,
		logger: logger,
		ttl:    ttl,
	}, nil
}

// Close はRedis接続を閉じる。
func (c *ListingCache) Close() error {
	return c.client.Close()
}

// Ping は接続の疎通を確認する。ヘルスチェックで使用する。
func (c *ListingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetSnapshot はキャッシュ済みスナップショットを返す。
// キャッシュミスの場合は(nil, false, nil)を返す。
// 復元不能なデータ（デシリアライズ失敗）はミスとして扱い削除する。
func (c *ListingCache) GetSnapshot(ctx context.Context) ([]model.Listing, bool, error) {
	data, err := c.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("スナップショットの取得に失敗しました: %w", err)
	}

	var listings []model.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		c.logger.Warn("キャッシュの復元に失敗したため破棄します",
			slog.String("error", err.Error()),
		)
		_ = c.client.Del(ctx, snapshotKey).Err()
		return nil, false, nil
	}

	return listings, true, nil
}

// SetSnapshot はスナップショットをTTL付きで保存する。
func (c *ListingCache) SetSnapshot(ctx context.Context, listings []model.Listing) error {
	data, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("スナップショットのシリアライズに失敗しました: %w", err)
	}

	if err := c.client.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("スナップショットの保存に失敗しました: %w", err)
	}

	return nil
}

// Invalidate はスナップショットを破棄する。
// キーが存在しない場合もエラーにしない。
func (c *ListingCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("スナップショットの破棄に失敗しました: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionKeyPrefix は高速ストアのキー接頭辞。キーは session:<id> の形式。
const sessionKeyPrefix = "session:"

// RedisSessionStore はRedisを使用したセッションの高速ストア。
// エントリはセッションIDからユーザーIDへのマッピングで、
// TTLは永続レコードの残存期間以下に設定される。
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore はRedisSessionStoreを生成する。
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// Set はセッションIDとユーザーIDのマッピングをTTL付きで書き込む。
// TTLは秒単位に切り捨てる。切り上げると高速エントリが永続レコードより
// 長生きしてしまうため、必ず切り捨てる。
func (s *RedisSessionStore) Set(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	ttl = ttl.Truncate(time.Second)
	if ttl <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sessionID, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session entry: %w", err)
	}
	return nil
}

// Get はセッションIDに対応するユーザーIDを返す。
// エントリが存在しない場合は空文字列を返す（エラーにはしない）。
// TTLによる早期消滅は呼び出し側でセッション無効として扱われる。
func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	userID, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session entry: %w", err)
	}
	return userID, nil
}

// Delete はエントリを削除する。存在しなくてもエラーにしない（冪等）。
func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete session entry: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionKVStore = (*RedisSessionStore)(nil)

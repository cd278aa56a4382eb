package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSessionStore(client), mr
}

func TestRedisSessionStore_SetAndGet_RoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "sess-1", "user-1", time.Hour); err != nil {
		t.Fatalf("Set returned unexpected error: %v", err)
	}

	userID, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get returned unexpected error: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("Get = %q, want %q", userID, "user-1")
	}

	// キーは session:<id> 形式で保存される
	if !mr.Exists("session:sess-1") {
		t.Error("expected key session:sess-1 in the store")
	}
}

func TestRedisSessionStore_Get_MissingEntry_ReturnsEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	userID, err := store.Get(context.Background(), "never-set")
	if err != nil {
		t.Fatalf("Get must not error on a missing entry: %v", err)
	}
	if userID != "" {
		t.Errorf("Get = %q, want empty string", userID)
	}
}

func TestRedisSessionStore_Set_TruncatesTTLToSeconds(t *testing.T) {
	store, mr := newTestStore(t)

	// 90.9秒 → 90秒に切り捨て（切り上げると永続レコードより長生きする）
	if err := store.Set(context.Background(), "sess-1", "user-1", 90*time.Second+900*time.Millisecond); err != nil {
		t.Fatalf("Set returned unexpected error: %v", err)
	}

	ttl := mr.TTL("session:sess-1")
	if ttl != 90*time.Second {
		t.Errorf("TTL = %v, want %v", ttl, 90*time.Second)
	}
}

func TestRedisSessionStore_Set_NonPositiveTTL_ReturnsError(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.Set(context.Background(), "sess-1", "user-1", 500*time.Millisecond); err == nil {
		t.Error("sub-second TTL truncates to zero and must be rejected")
	}
	if err := store.Set(context.Background(), "sess-2", "user-1", -time.Minute); err == nil {
		t.Error("negative TTL must be rejected")
	}
}

func TestRedisSessionStore_EntryExpiresWithTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "sess-1", "user-1", time.Minute); err != nil {
		t.Fatalf("Set returned unexpected error: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	userID, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get returned unexpected error: %v", err)
	}
	if userID != "" {
		t.Error("expected entry to expire after TTL")
	}
}

func TestRedisSessionStore_Delete_Idempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "sess-1", "user-1", time.Hour); err != nil {
		t.Fatalf("Set returned unexpected error: %v", err)
	}
	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete returned unexpected error: %v", err)
	}
	// 既に存在しないエントリの削除もエラーにしない
	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Errorf("Delete must be idempotent, got %v", err)
	}

	userID, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get returned unexpected error: %v", err)
	}
	if userID != "" {
		t.Error("expected entry to be gone after Delete")
	}
}

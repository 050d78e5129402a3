package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinford/docchat/internal/core/chat"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "docchat:memory:"

// MemoryStore はRedisにセッションメモリのブロブを保存する
type MemoryStore struct {
	client *redis.Client
}

// NewMemoryStore は新しい MemoryStore を作成し疎通を確認する
func NewMemoryStore(ctx context.Context, addr, password string, database int) (*MemoryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &MemoryStore{client: client}, nil
}

// Load はセッションのブロブを返す（未保存の場合はnil, nil）
func (m *MemoryStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	blob, err := m.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load memory blob: %w", err)
	}
	return blob, nil
}

// Save はセッションのブロブを上書き保存する
func (m *MemoryStore) Save(ctx context.Context, sessionID string, blob []byte) error {
	if err := m.client.Set(ctx, keyPrefix+sessionID, blob, 0).Err(); err != nil {
		return fmt.Errorf("failed to save memory blob: %w", err)
	}
	return nil
}

// Close はRedis接続を閉じる
func (m *MemoryStore) Close() error {
	return m.client.Close()
}

// インターフェース実装の確認
var _ chat.MemoryStore = (*MemoryStore)(nil)

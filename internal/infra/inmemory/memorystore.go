package inmemory

import (
	"context"
	"sync"

	"github.com/jinford/docchat/internal/core/chat"
)

// MemoryStore はプロセス内にセッションメモリを保持する
// Redis未設定の環境や開発用途で使用される
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore は新しい MemoryStore を作成する
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

// Load はセッションのブロブを返す（未保存の場合はnil, nil）
func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.blobs[sessionID]
	if !ok {
		return nil, nil
	}

	copied := make([]byte, len(blob))
	copy(copied, blob)
	return copied, nil
}

// Save はセッションのブロブを上書き保存する
func (m *MemoryStore) Save(_ context.Context, sessionID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]byte, len(blob))
	copy(copied, blob)
	m.blobs[sessionID] = copied
	return nil
}

// インターフェース実装の確認
var _ chat.MemoryStore = (*MemoryStore)(nil)

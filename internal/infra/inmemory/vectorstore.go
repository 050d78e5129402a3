package inmemory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/jinford/docchat/internal/core/chat"
	"github.com/jinford/docchat/internal/core/ingestion"
)

// VectorStore はプロセス内でベクトルコレクションを保持する
// PostgreSQL未設定の環境や開発用途で使用される
type VectorStore struct {
	mu      sync.RWMutex
	entries []ingestion.Entry
}

// NewVectorStore は新しい VectorStore を作成する
func NewVectorStore() *VectorStore {
	return &VectorStore{}
}

// ReplaceAll は既存のコレクションを全削除してから新しいエントリを挿入する
func (s *VectorStore) ReplaceAll(_ context.Context, entries []ingestion.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]ingestion.Entry(nil), entries...)
	return nil
}

// Append は既存のコレクションを保持したままエントリを挿入する
func (s *VectorStore) Append(_ context.Context, entries []ingestion.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entries...)
	return nil
}

// ListIDs はコレクション内の全チャンクIDを挿入順で返す
func (s *VectorStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		ids = append(ids, entry.ID)
	}
	return ids, nil
}

// Query はコサイン類似度の高い順に最大k件のチャンクを返す
// コレクションが空の場合は空のスライスを返す
func (s *VectorStore) Query(_ context.Context, vector []float32, k int) ([]chat.Retrieved, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	retrieved := make([]chat.Retrieved, 0, len(s.entries))
	for _, entry := range s.entries {
		retrieved = append(retrieved, chat.Retrieved{
			Text:  entry.Text,
			Score: cosineSimilarity(vector, entry.Vector),
		})
	}

	sort.SliceStable(retrieved, func(i, j int) bool {
		return retrieved[i].Score > retrieved[j].Score
	})

	if len(retrieved) > k {
		retrieved = retrieved[:k]
	}
	return retrieved, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// インターフェース実装の確認
var (
	_ ingestion.VectorStore = (*VectorStore)(nil)
	_ chat.Retriever        = (*VectorStore)(nil)
)

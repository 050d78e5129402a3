package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jinford/docchat/internal/core/chat"
	"github.com/jinford/docchat/internal/core/ingestion"
	"github.com/jinford/docchat/pkg/db"
	"github.com/jinford/docchat/pkg/lock"
	"github.com/pgvector/pgvector-go"
)

// writeLockID はコレクション書き込みをプロセス横断で直列化するためのロックID
var writeLockID = lock.GenerateLockID("docchat", "document_chunks", "write")

// Store はpgvectorを使用したベクトルコレクションの永続化層
type Store struct {
	db        *db.DB
	dimension int
}

// NewStore は新しい Store を作成する
func NewStore(database *db.DB, dimension int) *Store {
	return &Store{
		db:        database,
		dimension: dimension,
	}
}

// EnsureSchema はテーブルとpgvector拡張を準備する
// chunk_idは追記モードで重複しうるため一意制約を持たない
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			chunk_id TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.dimension),
	}

	for _, stmt := range statements {
		if _, err := s.db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	return nil
}

// ReplaceAll は既存のコレクションを全削除してから新しいエントリを挿入する
// 削除は即座に確定するため、挿入に失敗した場合コレクションは空のまま残る
// 書き込みはアドバイザリロックでプロセス横断で直列化される
func (s *Store) ReplaceAll(ctx context.Context, entries []ingestion.Entry) error {
	writeLock, err := lock.Acquire(ctx, s.db.Pool, writeLockID)
	if err != nil {
		return fmt.Errorf("%w: %v", ingestion.ErrStoreWriteFailed, err)
	}
	defer writeLock.Release(ctx)

	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM document_chunks`); err != nil {
		return fmt.Errorf("%w: failed to clear collection: %v", ingestion.ErrStoreWriteFailed, err)
	}

	return s.insert(ctx, entries)
}

// Append は既存のコレクションを保持したままエントリを挿入する
func (s *Store) Append(ctx context.Context, entries []ingestion.Entry) error {
	writeLock, err := lock.Acquire(ctx, s.db.Pool, writeLockID)
	if err != nil {
		return fmt.Errorf("%w: %v", ingestion.ErrStoreWriteFailed, err)
	}
	defer writeLock.Release(ctx)

	return s.insert(ctx, entries)
}

func (s *Store) insert(ctx context.Context, entries []ingestion.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(
			`INSERT INTO document_chunks (id, chunk_id, content, embedding) VALUES ($1, $2, $3, $4)`,
			uuid.New(),
			entry.ID,
			entry.Text,
			pgvector.NewVector(entry.Vector),
		)
	}

	results := s.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("%w: failed to insert chunks: %v", ingestion.ErrStoreWriteFailed, err)
		}
	}

	return nil
}

// ListIDs はコレクション内の全チャンクIDを挿入順で返す
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT chunk_id FROM document_chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list chunks: %v", chat.ErrStoreQueryFailed, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: failed to scan chunk id: %v", chat.ErrStoreQueryFailed, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to list chunks: %v", chat.ErrStoreQueryFailed, err)
	}

	return ids, nil
}

// Query はコサイン類似度の高い順に最大k件のチャンクを返す
// コレクションが空の場合は空のスライスを返す
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]chat.Retrieved, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT content, 1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(vector),
		k,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query chunks: %v", chat.ErrStoreQueryFailed, err)
	}
	defer rows.Close()

	retrieved := make([]chat.Retrieved, 0, k)
	for rows.Next() {
		var r chat.Retrieved
		if err := rows.Scan(&r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("%w: failed to scan chunk: %v", chat.ErrStoreQueryFailed, err)
		}
		retrieved = append(retrieved, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to query chunks: %v", chat.ErrStoreQueryFailed, err)
	}

	return retrieved, nil
}

// DeleteAll はコレクションを空にする
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM document_chunks`); err != nil {
		return fmt.Errorf("%w: failed to delete chunks: %v", ingestion.ErrStoreWriteFailed, err)
	}
	return nil
}

// インターフェース実装の確認
var (
	_ ingestion.VectorStore = (*Store)(nil)
	_ chat.Retriever        = (*Store)(nil)
)

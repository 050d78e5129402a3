package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor はバイト列をそのままテキストとして返す
type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return string(data), nil
}

// fakeEmbedder はテキスト長に基づく決定的なベクトルを返す
type fakeEmbedder struct {
	dimension int
	err       error
	calls     int
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dimension)
		v[0] = float32(len(text))
		vectors[i] = v
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dimension }

// fakeStore はメモリ上のコレクションを保持する
type fakeStore struct {
	mu         sync.Mutex
	entries    []Entry
	replaceErr error
	appendErr  error
}

func (f *fakeStore) ReplaceAll(_ context.Context, entries []Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// 先に全削除してから挿入する（挿入失敗時は空のまま）
	f.entries = nil
	if f.replaceErr != nil {
		return fmt.Errorf("%w: %v", ErrStoreWriteFailed, f.replaceErr)
	}
	f.entries = append([]Entry{}, entries...)
	return nil
}

func (f *fakeStore) Append(_ context.Context, entries []Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return fmt.Errorf("%w: %v", ErrStoreWriteFailed, f.appendErr)
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeStore) ListIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.entries))
	for i, e := range f.entries {
		ids[i] = e.ID
	}
	return ids, nil
}

func (f *fakeStore) snapshot() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Entry{}, f.entries...)
}

func newTestService(t *testing.T, store *fakeStore, embedder *fakeEmbedder, extractor *fakeExtractor) *Service {
	t.Helper()
	chunker, err := NewChunker(ChunkerConfig{Policy: PolicyFixed, ChunkSize: 100, Overlap: 0})
	require.NoError(t, err)
	return NewService(extractor, chunker, embedder, store)
}

func TestIngest_Replace(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store, &fakeEmbedder{dimension: 8}, &fakeExtractor{})

	result, err := svc.Ingest(context.Background(), IngestParams{
		Filename: "doc.txt",
		Data:     []byte(strings.Repeat("a", 250)),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Chunks)
	assert.Contains(t, result.Message, "3")

	entries := store.snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, "0", entries[0].ID)
	assert.Equal(t, "2", entries[2].ID)
	for _, e := range entries {
		assert.Len(t, e.Vector, 8)
	}
}

// TestIngest_ReplaceSemantics は2回目の取り込み後、コレクションに
// 1回目の内容が残らないことを確認します
func TestIngest_ReplaceSemantics(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store, &fakeEmbedder{dimension: 4}, &fakeExtractor{})

	_, err := svc.Ingest(context.Background(), IngestParams{Filename: "first.txt", Data: []byte(strings.Repeat("x", 300))})
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), IngestParams{Filename: "second.txt", Data: []byte(strings.Repeat("y", 150))})
	require.NoError(t, err)

	entries := store.snapshot()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotContains(t, e.Text, "x", "old collection content leaked into new collection")
	}
}

func TestIngest_AppendMode(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store, &fakeEmbedder{dimension: 4}, &fakeExtractor{})

	_, err := svc.Ingest(context.Background(), IngestParams{Filename: "a.txt", Data: []byte(strings.Repeat("x", 150))})
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), IngestParams{Filename: "b.txt", Data: []byte(strings.Repeat("y", 150)), Mode: ModeAppend})
	require.NoError(t, err)

	assert.Len(t, store.snapshot(), 4)
}

// TestIngest_EmbeddingFailureKeepsCollection はEmbedding段階の失敗が
// 既存コレクションを破壊しないことを確認します
func TestIngest_EmbeddingFailureKeepsCollection(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{dimension: 4}
	svc := newTestService(t, store, embedder, &fakeExtractor{})

	_, err := svc.Ingest(context.Background(), IngestParams{Filename: "a.txt", Data: []byte(strings.Repeat("x", 150))})
	require.NoError(t, err)
	before := store.snapshot()

	embedder.err = ErrEmbeddingUnavailable
	_, err = svc.Ingest(context.Background(), IngestParams{Filename: "b.txt", Data: []byte(strings.Repeat("y", 150))})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)

	assert.Equal(t, before, store.snapshot(), "collection changed despite embedding failure")
}

// TestIngest_ExtractionFailureKeepsCollection は抽出段階の失敗が
// 既存コレクションを破壊しないことを確認します
func TestIngest_ExtractionFailureKeepsCollection(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{}
	svc := newTestService(t, store, &fakeEmbedder{dimension: 4}, extractor)

	_, err := svc.Ingest(context.Background(), IngestParams{Filename: "a.txt", Data: []byte(strings.Repeat("x", 150))})
	require.NoError(t, err)
	before := store.snapshot()

	extractor.err = errors.New("broken pdf")
	_, err = svc.Ingest(context.Background(), IngestParams{Filename: "b.pdf", Data: []byte("binary")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)

	assert.Equal(t, before, store.snapshot())
}

// TestIngest_WriteFailureLeavesEmptyCollection は書き込み段階の失敗後に
// コレクションが空になる（再取り込みが必要な）ことを確認します
func TestIngest_WriteFailureLeavesEmptyCollection(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store, &fakeEmbedder{dimension: 4}, &fakeExtractor{})

	_, err := svc.Ingest(context.Background(), IngestParams{Filename: "a.txt", Data: []byte(strings.Repeat("x", 150))})
	require.NoError(t, err)

	store.replaceErr = errors.New("insert failed")
	_, err = svc.Ingest(context.Background(), IngestParams{Filename: "b.txt", Data: []byte(strings.Repeat("y", 150))})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreWriteFailed)

	assert.Empty(t, store.snapshot())
}

func TestIngest_EmptyInput(t *testing.T) {
	store := &fakeStore{}
	embedder := &fakeEmbedder{dimension: 4}
	svc := newTestService(t, store, embedder, &fakeExtractor{})

	_, err := svc.Ingest(context.Background(), IngestParams{Filename: "a.txt", Data: nil})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Zero(t, embedder.calls)
}

// TestIngest_ConcurrentReplace は並行した取り込みが交錯せず、
// 最終状態がどちらか一方の内容に一致することを確認します
func TestIngest_ConcurrentReplace(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store, &fakeEmbedder{dimension: 4}, &fakeExtractor{})

	var wg sync.WaitGroup
	for _, content := range []string{strings.Repeat("x", 250), strings.Repeat("y", 150)} {
		wg.Add(1)
		go func(data string) {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), IngestParams{Filename: "doc.txt", Data: []byte(data)})
			assert.NoError(t, err)
		}(content)
	}
	wg.Wait()

	entries := store.snapshot()
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	joined := strings.Join(texts, "")

	// どちらか一方のドキュメント内容のみで構成される
	onlyX := !strings.Contains(joined, "y")
	onlyY := !strings.Contains(joined, "x")
	assert.True(t, onlyX || onlyY, "collection contains interleaved content: %q", joined)
}

func TestCount(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, store, &fakeEmbedder{dimension: 4}, &fakeExtractor{})

	count, err := svc.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = svc.Ingest(context.Background(), IngestParams{Filename: "a.txt", Data: []byte(strings.Repeat("x", 250))})
	require.NoError(t, err)

	count, err = svc.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/docchat/internal/core/ingestion"
)

func TestVectorStore_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore()

	require.NoError(t, store.ReplaceAll(ctx, []ingestion.Entry{
		{ID: "0", Vector: []float32{1, 0}, Text: "古い内容"},
	}))
	require.NoError(t, store.ReplaceAll(ctx, []ingestion.Entry{
		{ID: "0", Vector: []float32{1, 0}, Text: "新しい内容A"},
		{ID: "1", Vector: []float32{0, 1}, Text: "新しい内容B"},
	}))

	ids, err := store.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, ids)

	results, err := store.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "古い内容", r.Text)
	}
}

func TestVectorStore_Append(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore()

	require.NoError(t, store.ReplaceAll(ctx, []ingestion.Entry{
		{ID: "0", Vector: []float32{1, 0}, Text: "既存"},
	}))
	require.NoError(t, store.Append(ctx, []ingestion.Entry{
		{ID: "0", Vector: []float32{0, 1}, Text: "追記"},
	}))

	ids, err := store.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "0"}, ids)
}

// TestVectorStore_QueryOrdering は類似度の高い順に返ることを確認します
func TestVectorStore_QueryOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore()

	require.NoError(t, store.ReplaceAll(ctx, []ingestion.Entry{
		{ID: "0", Vector: []float32{0, 1}, Text: "直交"},
		{ID: "1", Vector: []float32{1, 0}, Text: "一致"},
		{ID: "2", Vector: []float32{1, 1}, Text: "中間"},
	}))

	results, err := store.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "一致", results[0].Text)
	assert.Equal(t, "中間", results[1].Text)
	assert.Greater(t, results[0].Score, results[1].Score)
}

// TestVectorStore_QueryEmptyCollection は空のコレクションへの問い合わせが
// エラーではなく0件を返すことを確認します
func TestVectorStore_QueryEmptyCollection(t *testing.T) {
	store := NewVectorStore()

	results, err := store.Query(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

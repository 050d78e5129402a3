package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// IngestParams はドキュメント取り込みのパラメータを表す
type IngestParams struct {
	Filename string // アップロードされたファイル名
	Data     []byte // ファイルの生バイト列
	Mode     Mode   // replace（デフォルト）または append
}

// IngestResult はドキュメント取り込みの結果を表す
type IngestResult struct {
	Chunks  int    // 保存したチャンク数
	Message string // 利用者向けの完了メッセージ
}

// Service はドキュメント取り込みパイプラインを提供する
// 抽出 → チャンク分割 → Embedding → コレクション書き込み の順で処理し、
// 書き込み段階より前の失敗は既存コレクションに影響しない
type Service struct {
	extractor Extractor
	chunker   *Chunker
	embedder  Embedder
	store     VectorStore
	logger    *slog.Logger

	// コレクション書き込みは単一ライターに直列化する
	writeMu sync.Mutex
}

type ServiceOption func(*Service)

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(
	extractor Extractor,
	chunker *Chunker,
	embedder Embedder,
	store VectorStore,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// Ingest はドキュメントを取り込み、ベクトルコレクションを更新する
// ModeReplace では既存コレクションを全削除してから挿入するため、
// 書き込み段階の失敗後はコレクションが空になる（再取り込みが必要）
func (s *Service) Ingest(ctx context.Context, params IngestParams) (*IngestResult, error) {
	if len(params.Data) == 0 {
		return nil, fmt.Errorf("%w: no data provided", ErrExtractionFailed)
	}
	mode := params.Mode
	if mode == "" {
		mode = ModeReplace
	}

	// 1. テキスト抽出
	s.logger.Info("extracting text", "filename", params.Filename, "bytes", len(params.Data))
	text, err := s.extractor.Extract(ctx, params.Filename, params.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, params.Filename)
	}

	// 2. チャンク分割
	chunks, err := s.chunker.Split(text)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, params.Filename)
	}
	s.logger.Info("chunking completed", "chunks", len(chunks))

	// 3. Embedding生成
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingUnavailable, len(vectors), len(chunks))
	}

	entries := make([]Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = Entry{
			ID:     c.ID,
			Vector: vectors[i],
			Text:   c.Text,
		}
	}

	// 4. コレクション書き込み（単一ライター）
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	switch mode {
	case ModeAppend:
		err = s.store.Append(ctx, entries)
	default:
		err = s.store.ReplaceAll(ctx, entries)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write collection: %w", err)
	}

	s.logger.Info("ingestion completed", "filename", params.Filename, "chunks", len(entries), "mode", string(mode))

	return &IngestResult{
		Chunks:  len(entries),
		Message: fmt.Sprintf("ドキュメント処理完了: %d個のテキストチャンクを保存しました", len(entries)),
	}, nil
}

// Count はコレクション内のエントリ数を返す
func (s *Service) Count(ctx context.Context) (int, error) {
	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Sink はストリーム増分を呼び出し元へ転送する関数
// エラーを返すと呼び出し元が切断したとみなし、ストリームの消費を停止する
type Sink func(fragment string) error

// Service は質問応答パイプラインを提供する
// 質問のEmbedding → 類似度検索 → プロンプト構築 → ストリーミング生成 →
// メモリ更新の順に処理し、増分は到着し次第Sinkへ転送される
type Service struct {
	embedder  Embedder
	retriever Retriever
	generator Generator
	memory    MemoryStore
	counter   TokenCounter
	logger    *slog.Logger

	topK             int
	maxContextTokens int

	// セッション単位でメモリの読み取り〜書き戻しを直列化する
	mu           sync.Mutex
	sessionLocks map[string]*sync.Mutex
}

type ServiceOption func(*Service)

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTopK は検索件数のデフォルト値を設定する
func WithTopK(topK int) ServiceOption {
	return func(s *Service) {
		if topK > 0 {
			s.topK = topK
		}
	}
}

// WithTokenCounter はコンテキストのトークン予算を設定する
func WithTokenCounter(counter TokenCounter, maxContextTokens int) ServiceOption {
	return func(s *Service) {
		s.counter = counter
		s.maxContextTokens = maxContextTokens
	}
}

// NewService は新しい Service を作成する
func NewService(
	embedder Embedder,
	retriever Retriever,
	generator Generator,
	memory MemoryStore,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		embedder:     embedder,
		retriever:    retriever,
		generator:    generator,
		memory:       memory,
		logger:       slog.Default(),
		topK:         3,
		sessionLocks: make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// Ask は質問に対してRAGベースで回答をストリーミング生成する
// 増分はsinkへ到着順に転送され、全増分の連結がAskResult.Answerと一致する
// 生成開始前の失敗はエラーのみを返し、sinkは一度も呼ばれない
// ストリーム開始後の失敗では既に転送済みの増分が有効なまま、
// ErrGenerationInterruptedをラップしたエラーが返る
func (s *Service) Ask(ctx context.Context, params AskParams, sink Sink) (*AskResult, error) {
	if params.Question == "" {
		return nil, fmt.Errorf("question is required")
	}

	sessionID := params.SessionID.OrElse(DefaultSessionID)
	topK := params.TopK
	if topK <= 0 {
		topK = s.topK
	}

	// セッションメモリの読み取り〜書き戻しを直列化する
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	// 1. メモリ復元（破損時は空の履歴から再開する）
	history := s.loadHistory(ctx, sessionID)

	// 2. 質問のEmbedding
	vectors, err := s.embedder.BatchEmbed(ctx, []string{params.Question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 question vector, got %d", len(vectors))
	}

	// 3. 類似度検索（空のコレクションはエラーではなく0件）
	retrieved, err := s.retriever.Query(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	s.logger.Info("retrieval completed",
		"sessionID", sessionID,
		"chunks", len(retrieved),
		"historyTurns", len(history),
	)

	// 4. プロンプト構築
	prompt := BuildChatPrompt(history, retrieved, params.Question, s.counter, s.maxContextTokens)

	// 5. ストリーミング生成
	stream, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	for stream.Next() {
		if sink == nil {
			continue
		}
		if err := sink(stream.Current()); err != nil {
			// 呼び出し元の切断: ストリームを解放し、メモリは更新しない
			s.logger.Warn("caller aborted stream", "sessionID", sessionID, "error", err)
			return nil, fmt.Errorf("caller aborted stream: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		// 途中切断: 転送済みの増分は有効、メモリは更新しない
		return &AskResult{
			Answer:    stream.Answer(),
			Retrieved: len(retrieved),
			SessionID: sessionID,
		}, err
	}

	answer := stream.Answer()

	// 6. メモリ更新（回答は既に配信済みのため、失敗してもエラーにしない）
	history = append(history, Turn{Role: RoleHuman, Content: params.Question}, Turn{Role: RoleAssistant, Content: answer})
	if blob, err := EncodeHistory(history); err != nil {
		s.logger.Error("failed to encode conversation memory", "sessionID", sessionID, "error", err)
	} else if err := s.memory.Save(ctx, sessionID, blob); err != nil {
		s.logger.Error("failed to save conversation memory", "sessionID", sessionID, "error", err)
	}

	return &AskResult{
		Answer:    answer,
		Retrieved: len(retrieved),
		SessionID: sessionID,
	}, nil
}

// loadHistory はセッションの会話履歴を復元する
// 読み取り失敗・破損はログに残して空の履歴へ縮退する
func (s *Service) loadHistory(ctx context.Context, sessionID string) History {
	blob, err := s.memory.Load(ctx, sessionID)
	if err != nil {
		s.logger.Warn("failed to load conversation memory, starting fresh", "sessionID", sessionID, "error", err)
		return History{}
	}

	history, err := DecodeHistory(blob)
	if err != nil {
		if errors.Is(err, ErrCorruptMemory) {
			s.logger.Warn("conversation memory is corrupt, starting fresh", "sessionID", sessionID, "error", err)
		} else {
			s.logger.Error("failed to decode conversation memory, starting fresh", "sessionID", sessionID, "error", err)
		}
		return History{}
	}
	return history
}

// sessionLock はセッションIDに対応するロックを返す
func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.sessionLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.sessionLocks[sessionID] = lock
	}
	return lock
}

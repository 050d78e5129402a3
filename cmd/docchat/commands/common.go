package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/docchat/internal/core/chat"
	"github.com/jinford/docchat/internal/core/ingestion"
	"github.com/jinford/docchat/internal/infra/inmemory"
	infraopenai "github.com/jinford/docchat/internal/infra/openai"
	"github.com/jinford/docchat/internal/infra/pdf"
	"github.com/jinford/docchat/internal/infra/postgres"
	infraredis "github.com/jinford/docchat/internal/infra/redis"
	"github.com/jinford/docchat/internal/infra/tiktoken"
	"github.com/jinford/docchat/internal/platform/logger"
	"github.com/jinford/docchat/pkg/config"
	"github.com/jinford/docchat/pkg/db"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config        *config.Config
	Logger        *slog.Logger
	Database      *db.DB
	IngestService *ingestion.Service
	ChatService   *chat.Service

	memoryCloser interface{ Close() error }
}

// NewAppContext は設定ファイルを読み込み、依存コンポーネントを組み立てて
// AppContext を作成する
// DB_HOSTが空の場合はプロセス内ストア、REDIS_ADDRが空の場合は
// プロセス内メモリにフォールバックする
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	// 設定の読み込み
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEYが設定されていません")
	}

	// ロガーの初期化
	appLogger := logger.New(logger.DefaultConfig())

	appCtx := &AppContext{
		Config: cfg,
		Logger: appLogger,
	}

	// チャンク分割の設定
	chunker, err := ingestion.NewChunker(ingestion.ChunkerConfig{
		Policy:    ingestion.Policy(cfg.Chunking.Policy),
		ChunkSize: cfg.Chunking.ChunkSize,
		Overlap:   cfg.Chunking.Overlap,
		Separator: cfg.Chunking.Separator,
	})
	if err != nil {
		return nil, fmt.Errorf("チャンク分割設定が不正です: %w", err)
	}

	// OpenAIクライアント（Embedding + 回答生成）
	embedder := infraopenai.NewEmbedder(
		cfg.OpenAI.APIKey,
		infraopenai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		infraopenai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
	)
	generator := infraopenai.NewGenerator(
		cfg.OpenAI.APIKey,
		infraopenai.WithChatModel(cfg.OpenAI.ChatModel),
		infraopenai.WithGeneratorLogger(appLogger),
	)

	// ベクトルコレクション
	var (
		vectorStore ingestion.VectorStore
		retriever   chat.Retriever
	)
	if cfg.Database.Host != "" {
		database, err := db.New(ctx, db.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース接続に失敗: %w", err)
		}
		appCtx.Database = database

		store := postgres.NewStore(database, embedder.Dimension())
		if err := store.EnsureSchema(ctx); err != nil {
			appCtx.Close()
			return nil, fmt.Errorf("スキーマの初期化に失敗: %w", err)
		}
		vectorStore = store
		retriever = store
	} else {
		appLogger.Warn("DB_HOST is not set, using in-process vector store")
		store := inmemory.NewVectorStore()
		vectorStore = store
		retriever = store
	}

	// セッションメモリ
	var memoryStore chat.MemoryStore
	if cfg.Redis.Addr != "" {
		redisStore, err := infraredis.NewMemoryStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appCtx.Close()
			return nil, fmt.Errorf("Redis接続に失敗: %w", err)
		}
		memoryStore = redisStore
		appCtx.memoryCloser = redisStore
	} else {
		appLogger.Warn("REDIS_ADDR is not set, using in-process memory store")
		memoryStore = inmemory.NewMemoryStore()
	}

	appCtx.IngestService = ingestion.NewService(
		pdf.NewExtractor(),
		chunker,
		embedder,
		vectorStore,
		ingestion.WithLogger(appLogger),
	)

	chatOpts := []chat.ServiceOption{
		chat.WithLogger(appLogger),
		chat.WithTopK(cfg.Chat.TopK),
	}
	if counter, err := tiktoken.NewCounter(); err != nil {
		appLogger.Warn("failed to load token encoding, context budget is disabled", "error", err)
	} else {
		chatOpts = append(chatOpts, chat.WithTokenCounter(counter, cfg.Chat.MaxContextTokens))
	}

	appCtx.ChatService = chat.NewService(
		embedder,
		retriever,
		generator,
		memoryStore,
		chatOpts...,
	)

	return appCtx, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.memoryCloser != nil {
		if err := ac.memoryCloser.Close(); err != nil {
			slog.Warn("failed to close memory store", "error", err)
		}
	}
	if ac.Database != nil {
		ac.Database.Close()
	}
}

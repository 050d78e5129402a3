package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// HTTPサーバ設定
	HTTP HTTPConfig

	// Database設定（ベクトルコレクション用。Hostが空の場合はプロセス内ストアを使用）
	Database DatabaseConfig

	// OpenAI設定（Embeddings + 回答生成用）
	OpenAI OpenAIConfig

	// Redis設定（セッションメモリ用。Addrが空の場合はプロセス内メモリを使用）
	Redis RedisConfig

	// チャンク分割設定
	Chunking ChunkingConfig

	// 質問応答設定
	Chat ChatConfig
}

// HTTPConfig はHTTPサーバ設定
type HTTPConfig struct {
	Port         int
	AllowOrigins []string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定（Embeddings + LLM）
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	ChatModel          string
}

// RedisConfig はRedis接続設定
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ChunkingConfig はチャンク分割設定
type ChunkingConfig struct {
	Policy    string // "fixed" or "separator"
	ChunkSize int
	Overlap   int
	Separator string
}

// ChatConfig は質問応答パイプラインの設定
type ChatConfig struct {
	TopK             int
	MaxContextTokens int
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:         getEnvAsInt("HTTP_PORT", 8000),
			AllowOrigins: getEnvAsList("HTTP_ALLOW_ORIGINS", []string{"http://localhost", "http://localhost:8080"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docchat"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docchat"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			ChatModel:          getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Chunking: ChunkingConfig{
			Policy:    getEnv("CHUNK_POLICY", "fixed"),
			ChunkSize: getEnvAsInt("CHUNK_SIZE", 800),
			Overlap:   getEnvAsInt("CHUNK_OVERLAP", 50),
			Separator: getEnv("CHUNK_SEPARATOR", "\n\n"),
		},
		Chat: ChatConfig{
			TopK:             getEnvAsInt("CHAT_TOP_K", 3),
			MaxContextTokens: getEnvAsInt("CHAT_MAX_CONTEXT_TOKENS", 2000),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList は環境変数をカンマ区切りのリストとして取得します
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

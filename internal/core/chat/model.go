package chat

import (
	"context"

	"github.com/samber/mo"
)

// Role は会話ターンの話者を表す
type Role string

const (
	// RoleHuman は利用者の発話
	RoleHuman Role = "human"
	// RoleAssistant はモデルの回答
	RoleAssistant Role = "assistant"
)

// Turn は会話の1ターンを表す
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History は会話ターンの時系列（セッション内では追記のみ）
type History []Turn

// DefaultSessionID はセッションIDが指定されない場合に使用されるキー
const DefaultSessionID = "default"

// AskParams は質問応答のパラメータを表す
type AskParams struct {
	SessionID mo.Option[string] // セッションID（未指定時はDefaultSessionID）
	Question  string            // ユーザーの質問文
	TopK      int               // チャンク検索の上限（デフォルト: 3）
}

// AskResult は質問応答の結果を表す
type AskResult struct {
	Answer    string // ストリーム全体を連結した回答全文
	Retrieved int    // プロンプトに使用したチャンク数
	SessionID string // 実際に使用されたセッションID
}

// Retrieved は類似度検索で取得した1件のチャンクを表す
// Scoreの数値範囲はストア実装に依存し、並び順のみが意味を持つ
type Retrieved struct {
	Text  string
	Score float64
}

// Embedder は質問文をベクトルに変換するインターフェース
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever はベクトルコレクションへの類似度検索インターフェース
type Retriever interface {
	// Query は類似度の高い順に最大k件を返します
	// コレクションが空の場合は空のスライスを返します（エラーではない）
	Query(ctx context.Context, vector []float32, k int) ([]Retrieved, error)
}

// Generator はプロンプトからストリーミングで回答を生成するインターフェース
type Generator interface {
	// Generate は回答ストリームを開始します
	// エンドポイントに到達できない場合はErrGenerationUnavailableを返します
	Generate(ctx context.Context, prompt string) (AnswerStream, error)
}

// AnswerStream はモデル出力の増分テキスト列を表す
// 再開不可能な有限列で、Nextがfalseを返した後にErrとAnswerが確定する
type AnswerStream interface {
	// Next は次の増分が到着するまでブロックし、取得できた場合にtrueを返します
	Next() bool

	// Current は直近のNextで取得した増分テキストを返します
	Current() string

	// Err はストリームの終了理由を返します
	// 正常終了はnil、途中切断はErrGenerationInterruptedをラップしたエラー
	Err() error

	// Answer はこれまでに受信した増分の連結を返します
	Answer() string

	// Close は基盤のストリームを解放します
	Close() error
}

// MemoryStore はセッションごとの圧縮済みメモリブロブを保持するインターフェース
type MemoryStore interface {
	// Load はセッションのブロブを返します（未保存の場合はnil, nil）
	Load(ctx context.Context, sessionID string) ([]byte, error)

	// Save はセッションのブロブを上書き保存します
	Save(ctx context.Context, sessionID string, blob []byte) error
}

// TokenCounter はテキストのトークン数をカウントするインターフェース
type TokenCounter interface {
	CountTokens(text string) int
}

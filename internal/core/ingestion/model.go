package ingestion

import "context"

// Chunk は埋め込み対象となるテキスト断片を表します
type Chunk struct {
	ID     string // 連番の文字列ID（"0", "1", ...）
	Text   string // チャンクの内容
	Offset int    // 元テキスト内の開始位置（rune単位）
}

// Entry はベクトルコレクションに格納する1件分のデータを表します
type Entry struct {
	ID     string
	Vector []float32
	Text   string
}

// Mode はインジェスト時のコレクション更新方式
type Mode string

const (
	// ModeReplace はコレクション全体を新しい内容で置き換えます
	ModeReplace Mode = "replace"
	// ModeAppend は既存のコレクションに追記します
	ModeAppend Mode = "append"
)

// Extractor はバイナリからテキストを抽出するインターフェース
type Extractor interface {
	// Extract はアップロードされたファイルからテキストを抽出します
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// Embedder はテキストをベクトルに変換するインターフェース
type Embedder interface {
	// BatchEmbed は複数テキストのEmbeddingを入力と同じ順序で返します
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension はベクトル次元数を返します
	Dimension() int
}

// VectorStore はベクトルコレクションへの書き込みインターフェース
type VectorStore interface {
	// ReplaceAll は既存のコレクションを全削除してから新しいエントリを挿入します
	// 削除後の挿入に失敗した場合、コレクションは空のまま残ります
	ReplaceAll(ctx context.Context, entries []Entry) error

	// Append は既存のコレクションを保持したままエントリを挿入します
	Append(ctx context.Context, entries []Entry) error

	// ListIDs はコレクション内の全IDを挿入順で返します
	ListIDs(ctx context.Context) ([]string, error)
}

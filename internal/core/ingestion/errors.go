package ingestion

import "errors"

var (
	// ErrInvalidConfig はチャンク分割設定が不正な場合に返されます
	ErrInvalidConfig = errors.New("invalid chunker config")

	// ErrExtractionFailed はテキスト抽出に失敗した場合に返されます
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEmbeddingUnavailable はEmbeddingモデルに到達できない場合に返されます
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrStoreWriteFailed はベクトルコレクションへの書き込みに失敗した場合に返されます
	ErrStoreWriteFailed = errors.New("store write failed")

	// ErrEmptyDocument は抽出結果が空の場合に返されます
	ErrEmptyDocument = errors.New("empty document")
)

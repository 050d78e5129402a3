package chat

import "errors"

var (
	// ErrStoreQueryFailed は類似度検索に失敗した場合に返されます
	ErrStoreQueryFailed = errors.New("store query failed")

	// ErrGenerationUnavailable は生成モデルに到達できない場合に返されます
	// （最初の増分が届く前の失敗）
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrGenerationInterrupted はストリームが途中で切断された場合に返されます
	// 既に届いた増分はそのまま有効です
	ErrGenerationInterrupted = errors.New("generation interrupted")

	// ErrCorruptMemory はメモリブロブの復元に失敗した場合に返されます
	ErrCorruptMemory = errors.New("corrupt conversation memory")
)

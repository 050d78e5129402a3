package tiktoken

import (
	"fmt"
	"unicode/utf8"

	"github.com/jinford/docchat/internal/core/chat"
	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding はOpenAIの現行モデルが使用するエンコーディング
const defaultEncoding = "cl100k_base"

// Counter はtiktokenのエンコーディングでトークン数をカウントする
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter は新しい Counter を作成する
func NewCounter() (*Counter, error) {
	encoding, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding: %w", err)
	}
	return &Counter{encoding: encoding}, nil
}

// CountTokens はテキストのトークン数を返す
func (c *Counter) CountTokens(text string) int {
	if c == nil || c.encoding == nil {
		// エンコーディング未初期化時はrune数で近似する
		return utf8.RuneCountInString(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// インターフェース実装の確認
var _ chat.TokenCounter = (*Counter)(nil)

package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runeCounter はrune数をトークン数とみなすテスト用カウンタ
type runeCounter struct{}

func (runeCounter) CountTokens(text string) int {
	return len([]rune(text))
}

func TestBuildChatPrompt_WithContext(t *testing.T) {
	history := History{
		{Role: RoleHuman, Content: "最初の質問"},
		{Role: RoleAssistant, Content: "最初の回答"},
	}
	chunks := []Retrieved{
		{Text: "チャンク1の内容", Score: 0.92},
		{Text: "チャンク2の内容", Score: 0.85},
	}

	prompt := BuildChatPrompt(history, chunks, "次の質問", nil, 0)

	assert.Contains(t, prompt, "ユーザー: 最初の質問")
	assert.Contains(t, prompt, "アシスタント: 最初の回答")
	assert.Contains(t, prompt, "チャンク1の内容\nチャンク2の内容")
	assert.Contains(t, prompt, "## 質問\n次の質問")
	assert.NotContains(t, prompt, NoContextMarker)

	// 履歴 → コンテキスト → 質問 の順に並ぶ
	historyIdx := strings.Index(prompt, "最初の質問")
	contextIdx := strings.Index(prompt, "チャンク1の内容")
	questionIdx := strings.Index(prompt, "次の質問")
	assert.Less(t, historyIdx, contextIdx)
	assert.Less(t, contextIdx, questionIdx)
}

// TestBuildChatPrompt_NoContext は検索結果0件の場合にコンテキスト欄が
// 省略されず、明示的なマーカーが挿入されることを確認します
func TestBuildChatPrompt_NoContext(t *testing.T) {
	prompt := BuildChatPrompt(History{}, nil, "What is X?", nil, 0)

	assert.Contains(t, prompt, NoContextMarker)
	assert.Contains(t, prompt, "## コンテキスト")
	assert.Contains(t, prompt, "What is X?")
}

func TestBuildChatPrompt_EmptyHistory(t *testing.T) {
	prompt := BuildChatPrompt(History{}, []Retrieved{{Text: "内容"}}, "質問", nil, 0)

	assert.Contains(t, prompt, "(これまでの会話はありません)")
}

// TestBuildChatPrompt_TokenBudget はトークン予算を超えるコンテキストが
// 末尾から切り詰められることを確認します
func TestBuildChatPrompt_TokenBudget(t *testing.T) {
	chunks := []Retrieved{
		{Text: strings.Repeat("a", 50)},
		{Text: strings.Repeat("b", 50)},
		{Text: strings.Repeat("c", 50)},
	}

	prompt := BuildChatPrompt(History{}, chunks, "質問", runeCounter{}, 100)

	assert.Contains(t, prompt, strings.Repeat("a", 50))
	assert.Contains(t, prompt, strings.Repeat("b", 50))
	assert.NotContains(t, prompt, strings.Repeat("c", 50))
}

// TestBuildChatPrompt_BudgetKeepsFirstChunk は予算が小さすぎる場合でも
// 最も関連度の高い先頭チャンクが残ることを確認します
func TestBuildChatPrompt_BudgetKeepsFirstChunk(t *testing.T) {
	chunks := []Retrieved{
		{Text: strings.Repeat("a", 200)},
		{Text: strings.Repeat("b", 200)},
	}

	prompt := BuildChatPrompt(History{}, chunks, "質問", runeCounter{}, 10)

	assert.Contains(t, prompt, strings.Repeat("a", 200))
	assert.NotContains(t, prompt, strings.Repeat("b", 200))
	assert.NotContains(t, prompt, NoContextMarker)
}

func TestBuildChatPrompt_Deterministic(t *testing.T) {
	history := History{{Role: RoleHuman, Content: "q"}, {Role: RoleAssistant, Content: "a"}}
	chunks := []Retrieved{{Text: "context"}}

	first := BuildChatPrompt(history, chunks, "question", runeCounter{}, 100)
	second := BuildChatPrompt(history, chunks, "question", runeCounter{}, 100)
	require.Equal(t, first, second)
}

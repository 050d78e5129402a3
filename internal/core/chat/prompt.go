package chat

import (
	"fmt"
	"strings"
)

// NoContextMarker は検索結果が0件だった場合にコンテキスト欄へ挿入される目印
// コンテキスト欄を省略せず明示することで、根拠がない場合に回答を控える指示が
// 意味を持ち続ける
const NoContextMarker = "(該当するコンテキストはありません)"

// BuildChatPrompt はRAG質問応答用のプロンプトを構築する
// 会話履歴、検索で得たコンテキスト、質問、回答指示を固定のテンプレートで並べる
// counterが指定された場合、コンテキストはmaxContextTokensに収まるよう
// 末尾から切り詰められる
func BuildChatPrompt(
	history History,
	chunks []Retrieved,
	question string,
	counter TokenCounter,
	maxContextTokens int,
) string {
	var sb strings.Builder

	// システムプロンプトとガイドライン
	sb.WriteString("あなたはアップロードされたドキュメントに精通したアシスタントです。\n")
	sb.WriteString("以下のコンテキスト情報を基に、ユーザーの質問に日本語で回答してください。\n\n")

	sb.WriteString("## 回答のガイドライン\n")
	sb.WriteString("- コンテキストに含まれる情報のみを使用して回答してください\n")
	sb.WriteString("- コンテキストに根拠がない場合は、推測せずに回答できない旨を明確に述べてください\n\n")

	// 会話履歴
	sb.WriteString("## 会話履歴\n")
	if len(history) > 0 {
		for _, turn := range history {
			switch turn.Role {
			case RoleHuman:
				sb.WriteString(fmt.Sprintf("ユーザー: %s\n", turn.Content))
			case RoleAssistant:
				sb.WriteString(fmt.Sprintf("アシスタント: %s\n", turn.Content))
			}
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("(これまでの会話はありません)\n\n")
	}

	// 検索で得たコンテキスト
	sb.WriteString("## コンテキスト\n")
	selected := budgetChunks(chunks, counter, maxContextTokens)
	if len(selected) > 0 {
		texts := make([]string, len(selected))
		for i, c := range selected {
			texts[i] = c.Text
		}
		sb.WriteString(strings.Join(texts, "\n"))
		sb.WriteString("\n\n")
	} else {
		sb.WriteString(NoContextMarker)
		sb.WriteString("\n\n")
	}

	// ユーザーの質問
	sb.WriteString("## 質問\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	// 回答セクション
	sb.WriteString("## 回答\n")

	return sb.String()
}

// budgetChunks はトークン予算に収まるチャンクを先頭から選択する
// 類似度順を保つため途中を飛ばすことはなく、末尾から切り詰める
// 予算を超える場合でも先頭の1件は必ず残す
func budgetChunks(chunks []Retrieved, counter TokenCounter, maxContextTokens int) []Retrieved {
	if counter == nil || maxContextTokens <= 0 {
		return chunks
	}

	var selected []Retrieved
	total := 0
	for i, c := range chunks {
		tokens := counter.CountTokens(c.Text)
		if i > 0 && total+tokens > maxContextTokens {
			break
		}
		selected = append(selected, c)
		total += tokens
	}
	return selected
}

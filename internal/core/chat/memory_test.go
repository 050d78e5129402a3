package chat

import (
	"bytes"
	"compress/zlib"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryRoundTrip はdecode(encode(h)) == hがすべての有効な履歴で
// 成り立つことを確認します
func TestMemoryRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		history History
	}{
		{
			name:    "空の履歴",
			history: History{},
		},
		{
			name: "1往復の会話",
			history: History{
				{Role: RoleHuman, Content: "この文書の要点は？"},
				{Role: RoleAssistant, Content: "主な要点は3つあります。"},
			},
		},
		{
			name: "複数ターンの会話",
			history: History{
				{Role: RoleHuman, Content: "What is X?"},
				{Role: RoleAssistant, Content: "X is a placeholder."},
				{Role: RoleHuman, Content: "続けて"},
				{Role: RoleAssistant, Content: "詳細は次の通りです。"},
			},
		},
		{
			name: "特殊文字を含む内容",
			history: History{
				{Role: RoleHuman, Content: "改行\nタブ\tクォート\"絵文字🙂"},
				{Role: RoleAssistant, Content: `{"json": "のような内容"}`},
			},
		},
		{
			name: "長い内容",
			history: History{
				{Role: RoleHuman, Content: strings.Repeat("長文テスト。", 1000)},
				{Role: RoleAssistant, Content: strings.Repeat("response ", 2000)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := EncodeHistory(tt.history)
			require.NoError(t, err)

			decoded, err := DecodeHistory(blob)
			require.NoError(t, err)
			assert.Equal(t, tt.history, decoded)
		})
	}
}

func TestEncodeHistory_NilHistory(t *testing.T) {
	blob, err := EncodeHistory(nil)
	require.NoError(t, err)

	decoded, err := DecodeHistory(blob)
	require.NoError(t, err)
	assert.Equal(t, History{}, decoded)
}

// TestDecodeHistory_AbsentBlob はブロブ未保存の状態が空の履歴として
// 扱われること（エラーではない）を確認します
func TestDecodeHistory_AbsentBlob(t *testing.T) {
	for _, blob := range [][]byte{nil, {}} {
		decoded, err := DecodeHistory(blob)
		require.NoError(t, err)
		assert.Equal(t, History{}, decoded)
	}
}

func TestDecodeHistory_Corrupt(t *testing.T) {
	valid, err := EncodeHistory(History{{Role: RoleHuman, Content: "hello"}})
	require.NoError(t, err)

	notJSON := compress(t, []byte("this is not json"))
	unknownRole := compress(t, []byte(`[{"role":"system","content":"x"}]`))

	tests := []struct {
		name string
		blob []byte
	}{
		{name: "zlibではないバイト列", blob: []byte("garbage data")},
		{name: "切り詰められたブロブ", blob: valid[:len(valid)/2]},
		{name: "圧縮済みだがJSONではない", blob: notJSON},
		{name: "不明なrole", blob: unknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeHistory(tt.blob)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptMemory)
		})
	}
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

package chat

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
)

// EncodeHistory は会話履歴を自己記述的なバイト列にシリアライズして圧縮する
// JSON（roleタグ + content）をzlibで圧縮した形式で、DecodeHistoryと正確に往復する
func EncodeHistory(history History) ([]byte, error) {
	if history == nil {
		history = History{}
	}

	serialized, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize history: %w", err)
	}

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(serialized); err != nil {
		return nil, fmt.Errorf("failed to compress history: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize compression: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeHistory は圧縮済みブロブから会話履歴を復元する
// nilまたは空のブロブは空の履歴として扱う（エラーではない）
// 壊れた・切り詰められた入力にはErrCorruptMemoryを返す
func DecodeHistory(blob []byte) (History, error) {
	if len(blob) == 0 {
		return History{}, nil
	}

	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptMemory, err)
	}
	defer r.Close()

	decompressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptMemory, err)
	}

	var history History
	if err := json.Unmarshal(decompressed, &history); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptMemory, err)
	}

	for i, turn := range history {
		if turn.Role != RoleHuman && turn.Role != RoleAssistant {
			return nil, fmt.Errorf("%w: unknown role %q at turn %d", ErrCorruptMemory, turn.Role, i)
		}
	}

	if history == nil {
		history = History{}
	}
	return history, nil
}

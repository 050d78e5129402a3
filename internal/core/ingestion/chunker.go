package ingestion

import (
	"fmt"
	"strconv"
	"strings"
)

// Policy はチャンク分割の方式を表します
type Policy string

const (
	// PolicyFixed は固定幅のウィンドウで分割します
	PolicyFixed Policy = "fixed"
	// PolicySeparator はセパレータ単位に分割し、ChunkSizeまでマージします
	PolicySeparator Policy = "separator"
)

// ChunkerConfig はChunkerの設定を表します
type ChunkerConfig struct {
	Policy    Policy // 分割方式（デフォルト: fixed）
	ChunkSize int    // チャンクの最大文字数（rune単位）
	Overlap   int    // 前のチャンクと共有する量（fixed: 文字数、separator: ユニット数）
	Separator string // separatorポリシーで使用する区切り文字列
}

// DefaultChunkerConfig はデフォルトのChunker設定を返します
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		Policy:    PolicyFixed,
		ChunkSize: 800,
		Overlap:   50,
		Separator: "\n\n",
	}
}

// Chunker はテキストを埋め込み可能な大きさのチャンクに分割します
// 同一の入力に対して常に同一のチャンク列を返します
type Chunker struct {
	cfg ChunkerConfig
}

// NewChunker は設定を検証して新しいChunkerを作成します
func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.Policy == "" {
		cfg.Policy = PolicyFixed
	}
	if cfg.Policy != PolicyFixed && cfg.Policy != PolicySeparator {
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, cfg.Policy)
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, cfg.ChunkSize)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("%w: overlap must satisfy 0 <= overlap < chunk size, got %d", ErrInvalidConfig, cfg.Overlap)
	}
	if cfg.Policy == PolicySeparator && cfg.Separator == "" {
		return nil, fmt.Errorf("%w: separator must not be empty", ErrInvalidConfig)
	}
	return &Chunker{cfg: cfg}, nil
}

// Split はテキストをチャンク列に分割します
// 空文字列からは空のチャンク列が生成されます
func (c *Chunker) Split(text string) ([]Chunk, error) {
	if text == "" {
		return []Chunk{}, nil
	}

	switch c.cfg.Policy {
	case PolicySeparator:
		return c.splitBySeparator(text), nil
	default:
		return c.splitFixed(text), nil
	}
}

// splitFixed は固定幅ウィンドウで分割します
// 連続するチャンクは正確にOverlap文字を共有します
func (c *Chunker) splitFixed(text string) []Chunk {
	runes := []rune(text)
	step := c.cfg.ChunkSize - c.cfg.Overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			ID:     strconv.Itoa(len(chunks)),
			Text:   string(runes[start:end]),
			Offset: start,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitBySeparator はセパレータで区切られたユニットをChunkSizeまでマージします
// ChunkSizeを超える単一ユニットはそのまま1チャンクになります
func (c *Chunker) splitBySeparator(text string) []Chunk {
	units := splitKeepSeparator(text, c.cfg.Separator)

	var chunks []Chunk
	var current []unit
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		var sb strings.Builder
		for _, u := range current {
			sb.WriteString(u.text)
		}
		chunks = append(chunks, Chunk{
			ID:     strconv.Itoa(len(chunks)),
			Text:   sb.String(),
			Offset: current[0].offset,
		})

		// 末尾のOverlapユニットを次のチャンクに引き継ぐ
		carry := c.cfg.Overlap
		if carry > len(current)-1 {
			carry = len(current) - 1
		}
		carried := current[len(current)-carry:]
		current = current[:0]
		currentLen = 0
		for _, u := range carried {
			current = append(current, u)
			currentLen += u.length
		}
	}

	for _, u := range units {
		if currentLen > 0 && currentLen+u.length > c.cfg.ChunkSize {
			flush()
		}
		current = append(current, u)
		currentLen += u.length
	}
	if len(current) > 0 {
		// flushのoverlap引き継ぎを避けて末尾チャンクを直接生成する
		var sb strings.Builder
		for _, u := range current {
			sb.WriteString(u.text)
		}
		chunks = append(chunks, Chunk{
			ID:     strconv.Itoa(len(chunks)),
			Text:   sb.String(),
			Offset: current[0].offset,
		})
	}
	return chunks
}

// unit はセパレータ区切りの1単位を表します（セパレータを末尾に含む）
type unit struct {
	text   string
	offset int // 元テキスト内の開始位置（rune単位）
	length int // rune数
}

// splitKeepSeparator はセパレータを各ユニットの末尾に残したまま分割します
// セパレータを残すことで、ユニットの連結が元テキストを完全に復元します
func splitKeepSeparator(text, sep string) []unit {
	var units []unit
	offset := 0
	rest := text
	for {
		i := strings.Index(rest, sep)
		if i < 0 {
			if rest != "" {
				units = append(units, unit{text: rest, offset: offset, length: len([]rune(rest))})
			}
			return units
		}
		u := rest[:i+len(sep)]
		length := len([]rune(u))
		units = append(units, unit{text: u, offset: offset, length: length})
		offset += length
		rest = rest[i+len(sep):]
	}
}

package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/docchat/internal/core/chat"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/shared"
)

// DefaultChatModel はデフォルトで使用するOpenAIモデル
const DefaultChatModel = "gpt-4o-mini"

// Generator は OpenAI API を使用してストリーミングで回答を生成する
type Generator struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

type generatorOptions struct {
	model  string
	logger *slog.Logger
}

// GeneratorOption は Generator のオプション設定
type GeneratorOption func(*generatorOptions)

// WithChatModel はモデル名を上書きする
func WithChatModel(model string) GeneratorOption {
	return func(o *generatorOptions) {
		o.model = model
	}
}

// WithGeneratorLogger はロガーを差し替える
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(o *generatorOptions) {
		o.logger = logger
	}
}

// NewGenerator は新しい Generator を作成する
func NewGenerator(apiKey string, opts ...GeneratorOption) *Generator {
	options := generatorOptions{
		model:  DefaultChatModel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Generator{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
		),
		model:  options.model,
		logger: options.logger,
	}
}

// Generate は回答ストリームを開始する
// エンドポイントに到達できない場合、最初の増分が届く前に
// ErrGenerationUnavailableを返す
func (g *Generator) Generate(ctx context.Context, prompt string) (chat.AnswerStream, error) {
	raw := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})

	s := &answerStream{stream: raw, logger: g.logger}

	// 最初の増分まで進めて接続エラーを確定させる
	// これにより呼び出し元は「1つも増分が届いていない失敗」を
	// 通常のエラーとして扱える
	if s.advance() {
		s.primed = true
	} else {
		if err := raw.Err(); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("%w: %v", chat.ErrGenerationUnavailable, err)
		}
		s.done = true
	}

	return s, nil
}

// answerStream は openai のイベントストリームを増分テキスト列へ変換する
type answerStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	logger *slog.Logger

	current string
	pending string
	primed  bool
	done    bool
	answer  strings.Builder
}

// advance は次の有効な増分までストリームを進めpendingへ格納する
// 構造が不正なイベントはスキップしてストリームを継続する
func (s *answerStream) advance() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			s.logger.Warn("skipping malformed stream chunk", "chunkID", chunk.ID)
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			// finish_reasonのみのイベントなど、テキストを含まない増分
			continue
		}
		s.pending = delta
		return true
	}
	return false
}

func (s *answerStream) Next() bool {
	if s.done {
		return false
	}
	if s.primed {
		s.primed = false
	} else if !s.advance() {
		s.done = true
		return false
	}
	s.current = s.pending
	s.answer.WriteString(s.current)
	return true
}

func (s *answerStream) Current() string {
	return s.current
}

func (s *answerStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrGenerationInterrupted, err)
	}
	return nil
}

func (s *answerStream) Answer() string {
	return s.answer.String()
}

func (s *answerStream) Close() error {
	return s.stream.Close()
}

// インターフェース実装の確認
var (
	_ chat.Generator    = (*Generator)(nil)
	_ chat.AnswerStream = (*answerStream)(nil)
)

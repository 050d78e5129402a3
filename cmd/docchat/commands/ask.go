package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/jinford/docchat/internal/core/chat"
)

// AskAction は質問応答コマンドのアクション
// 回答は増分が届き次第、標準出力へストリーミングされる
func AskAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	session := cmd.String("session")
	topK := int(cmd.Int("top-k"))

	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	sessionID := mo.None[string]()
	if session != "" {
		sessionID = mo.Some(session)
	}

	result, err := appCtx.ChatService.Ask(ctx, chat.AskParams{
		SessionID: sessionID,
		Question:  question,
		TopK:      topK,
	}, func(fragment string) error {
		_, err := fmt.Fprint(os.Stdout, fragment)
		return err
	})
	if err != nil {
		slog.Error("質問応答に失敗しました", "error", err)
		return err
	}
	fmt.Println()

	slog.Info("質問応答が完了しました",
		"sessionID", result.SessionID,
		"retrieved", result.Retrieved,
		"answerLength", len(result.Answer),
	)
	return nil
}

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jinford/docchat/cmd/docchat/commands"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "docchat",
		Usage: "ドキュメントQAチャットボットサービス",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "サーバ関連コマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "HTTPサーバを起動",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.IntFlag{
								Name:  "port",
								Usage: "HTTPポート（省略時は環境変数またはデフォルトの8000）",
							},
						},
						Action: commands.ServerStartAction,
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "ドキュメントをベクトルコレクションに取り込む",
				ArgsUsage: "<ファイルパス>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.BoolFlag{
						Name:  "append",
						Usage: "既存のコレクションを保持したまま追記",
					},
				},
				Action: commands.IngestAction,
			},
			{
				Name:      "ask",
				Usage:     "取り込んだドキュメントに質問する",
				ArgsUsage: "<質問文>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "会話セッションID（省略時はdefault）",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "検索するチャンク数（省略時は環境変数またはデフォルトの3）",
					},
				},
				Action: commands.AskAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/jinford/docchat/internal/core/ingestion"
)

// IngestAction はドキュメントを取り込むコマンドのアクション
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	appendMode := cmd.Bool("append")

	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("取り込むファイルを指定してください")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	mode := ingestion.ModeReplace
	if appendMode {
		mode = ingestion.ModeAppend
	}

	slog.Info("ドキュメント取り込みを開始", "file", path, "mode", string(mode))

	result, err := appCtx.IngestService.Ingest(ctx, ingestion.IngestParams{
		Filename: filepath.Base(path),
		Data:     data,
		Mode:     mode,
	})
	if err != nil {
		slog.Error("ドキュメント取り込みに失敗しました", "error", err)
		return err
	}

	fmt.Println(result.Message)
	return nil
}

package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/docchat/internal/interface/httpapi"
)

// shutdownTimeout は停止時に処理中のリクエストを待つ上限
const shutdownTimeout = 10 * time.Second

// ServerStartAction はHTTPサーバを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	port := int(cmd.Int("port"))
	if port == 0 {
		port = appCtx.Config.HTTP.Port
	}

	server := httpapi.NewServer(
		appCtx.IngestService,
		appCtx.ChatService,
		httpapi.WithServerLogger(appCtx.Logger),
		httpapi.WithAllowOrigins(appCtx.Config.HTTP.AllowOrigins),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down http server", "error", err)
			return err
		}
		return nil
	}
}

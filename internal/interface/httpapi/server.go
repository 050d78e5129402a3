package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jinford/docchat/internal/core/chat"
	"github.com/jinford/docchat/internal/core/ingestion"
)

// Server はドキュメント取り込みと質問応答のHTTP APIを公開する
type Server struct {
	echo      *echo.Echo
	ingestSvc *ingestion.Service
	chatSvc   *chat.Service
	logger    *slog.Logger
	metrics   *metrics
}

type serverOptions struct {
	logger       *slog.Logger
	allowOrigins []string
}

// ServerOption は Server のオプション設定
type ServerOption func(*serverOptions)

// WithServerLogger はロガーを差し替える
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// WithAllowOrigins はCORSの許可オリジンを設定する
func WithAllowOrigins(origins []string) ServerOption {
	return func(o *serverOptions) {
		if len(origins) > 0 {
			o.allowOrigins = origins
		}
	}
}

// NewServer は新しい Server を作成しルーティングを登録する
func NewServer(ingestSvc *ingestion.Service, chatSvc *chat.Service, opts ...ServerOption) *Server {
	options := serverOptions{
		logger:       slog.Default(),
		allowOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(&options)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: options.allowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	s := &Server{
		echo:      e,
		ingestSvc: ingestSvc,
		chatSvc:   chatSvc,
		logger:    options.logger,
		metrics:   newMetrics(),
	}

	// エラーレスポンスは常に {"error": メッセージ} のJSON形式に統一する
	e.HTTPErrorHandler = s.errorHandler

	e.POST("/process_pdf", s.handleProcessPDF)
	e.POST("/query_answer", s.handleQueryAnswer)
	e.GET("/collection/count", s.handleCollectionCount)
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Start はHTTPサーバーを起動しリクエストの受付を開始する
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.logger.Info("starting http server", "addr", addr)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown はHTTPサーバーを安全に停止する
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}

	req := c.Request()
	s.logger.Error("request failed",
		"method", req.Method,
		"path", req.URL.Path,
		"status", code,
		"error", err,
	)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

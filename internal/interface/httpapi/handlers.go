package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/mo"

	"github.com/jinford/docchat/internal/core/chat"
	"github.com/jinford/docchat/internal/core/ingestion"
)

// maxUploadBytes はアップロードの上限サイズ（64MiB）
const maxUploadBytes = 64 << 20

type processPDFResponse struct {
	Message string `json:"message"`
}

type queryAnswerRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

type collectionCountResponse struct {
	Count int `json:"count"`
}

// handleProcessPDF はアップロードされたドキュメントを取り込む
// multipart/form-dataのfileフィールドでファイルを受け取り、
// 任意のmodeフィールド（replace/append）で更新方式を指定できる
func (s *Server) handleProcessPDF(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.metrics.ingestTotal.WithLabelValues("bad_request").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fileHeader.Size > maxUploadBytes {
		s.metrics.ingestTotal.WithLabelValues("bad_request").Inc()
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file is too large")
	}

	mode := ingestion.Mode(c.FormValue("mode"))
	switch mode {
	case "", ingestion.ModeReplace, ingestion.ModeAppend:
	default:
		s.metrics.ingestTotal.WithLabelValues("bad_request").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "mode must be replace or append")
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.metrics.ingestTotal.WithLabelValues("bad_request").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		s.metrics.ingestTotal.WithLabelValues("bad_request").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}

	result, err := s.ingestSvc.Ingest(c.Request().Context(), ingestion.IngestParams{
		Filename: fileHeader.Filename,
		Data:     data,
		Mode:     mode,
	})
	if err != nil {
		s.metrics.ingestTotal.WithLabelValues("error").Inc()
		return echo.NewHTTPError(ingestStatusCode(err), err.Error())
	}

	s.metrics.ingestTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestChunks.Observe(float64(result.Chunks))

	return c.JSON(http.StatusOK, processPDFResponse{Message: result.Message})
}

// handleQueryAnswer は質問への回答をチャンクドレスポンスでストリーミングする
// 生成開始前の失敗はJSONエラー、ストリーム開始後の失敗は送信の中断となる
func (s *Server) handleQueryAnswer(c echo.Context) error {
	var req queryAnswerRequest
	if err := c.Bind(&req); err != nil {
		s.metrics.queryTotal.WithLabelValues("bad_request").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		s.metrics.queryTotal.WithLabelValues("bad_request").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	sessionID := mo.None[string]()
	if req.SessionID != "" {
		sessionID = mo.Some(req.SessionID)
	}

	started := time.Now()
	resp := c.Response()
	streaming := false

	result, err := s.chatSvc.Ask(c.Request().Context(), chat.AskParams{
		SessionID: sessionID,
		Question:  req.Question,
		TopK:      req.TopK,
	}, func(fragment string) error {
		if !streaming {
			// 最初の増分が確定してからヘッダを送出する
			resp.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
			resp.WriteHeader(http.StatusOK)
			streaming = true
		}
		if _, err := resp.Write([]byte(fragment)); err != nil {
			return err
		}
		resp.Flush()
		return nil
	})

	if err != nil {
		s.metrics.queryTotal.WithLabelValues("error").Inc()
		if streaming {
			// ヘッダ送出済みのため、接続を打ち切ることでしか異常を伝えられない
			s.logger.Error("answer stream aborted", "error", err)
			return nil
		}
		return echo.NewHTTPError(queryStatusCode(err), err.Error())
	}

	s.metrics.queryTotal.WithLabelValues("ok").Inc()
	s.metrics.queryDuration.Observe(time.Since(started).Seconds())
	s.logger.Info("query completed",
		"sessionID", result.SessionID,
		"retrieved", result.Retrieved,
		"answerLength", len(result.Answer),
	)

	if !streaming {
		// 空の回答でもヘッダは返す
		resp.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
		resp.WriteHeader(http.StatusOK)
	}
	return nil
}

// handleCollectionCount はコレクション内のチャンク数を返す
func (s *Server) handleCollectionCount(c echo.Context) error {
	count, err := s.ingestSvc.Count(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, collectionCountResponse{Count: count})
}

func ingestStatusCode(err error) int {
	switch {
	case errors.Is(err, ingestion.ErrInvalidConfig),
		errors.Is(err, ingestion.ErrEmptyDocument),
		errors.Is(err, ingestion.ErrExtractionFailed):
		return http.StatusBadRequest
	case errors.Is(err, ingestion.ErrEmbeddingUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queryStatusCode(err error) int {
	switch {
	case errors.Is(err, chat.ErrGenerationUnavailable),
		errors.Is(err, ingestion.ErrEmbeddingUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, chat.ErrStoreQueryFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/jinford/docchat/internal/core/ingestion"
	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

// Extractor はアップロードされたファイルからテキストを抽出する
// PDF以外のファイルはそのままプレーンテキストとして扱う
type Extractor struct{}

// NewExtractor は新しい Extractor を作成する
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract はファイル内容からテキストを抽出する
func (e *Extractor) Extract(_ context.Context, filename string, data []byte) (string, error) {
	if !bytes.HasPrefix(data, pdfMagic) {
		return string(data), nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse %s: %v", ingestion.ErrExtractionFailed, filename, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: failed to extract text from %s: %v", ingestion.ErrExtractionFailed, filename, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: failed to read text from %s: %v", ingestion.ErrExtractionFailed, filename, err)
	}

	return buf.String(), nil
}

// インターフェース実装の確認
var _ ingestion.Extractor = (*Extractor)(nil)

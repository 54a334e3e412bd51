package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// TesseractEngine runs the local tesseract binary. PDFs with a text layer skip
// OCR entirely.
type TesseractEngine struct {
	language string
	logger   *zap.Logger
}

func NewTesseractEngine(language string, logger *zap.Logger) *TesseractEngine {
	if language == "" {
		language = "spa"
	}
	return &TesseractEngine{language: language, logger: logger}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) ExtractText(ctx context.Context, filename, mimetype string, data []byte) (string, error) {
	kind, err := DetectType(filename, mimetype)
	if err != nil {
		return "", err
	}

	image := data
	if kind == mimePDF {
		text, err := pdfText(data, e.logger)
		if err != nil {
			return "", err
		}
		if text != "" {
			e.logger.Info("PDF text layer used", zap.String("file", filename), zap.Int("text_length", len(text)))
			return text, nil
		}
		if image, err = pdfFirstPagePNG(data); err != nil {
			return "", err
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.recognize(image)
}

func (e *TesseractEngine) recognize(image []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return "", fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Package ocr is the OCR capability: it reads text out of receipts and invoices
// and pulls the financial fields out of that text.
package ocr

import (
	"context"
	"fmt"
	"time"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/dto"
	"gestor-financiero/internal/models"

	"go.uber.org/zap"
)

const (
	defaultConfidence = 0.85
	failedText        = "Falló el procesamiento OCR"
)

// Structurer fills extraction fields from free text, typically with an LLM.
type Structurer interface {
	Structure(ctx context.Context, text string) (*models.ExtractedData, error)
}

type Processor struct {
	engine     Engine
	structurer Structurer
	logger     *zap.Logger
}

// NewProcessor wires an engine with an optional structurer (nil disables the
// fallback).
func NewProcessor(engine Engine, structurer Structurer, logger *zap.Logger) *Processor {
	return &Processor{engine: engine, structurer: structurer, logger: logger}
}

func (p *Processor) EngineName() string { return p.engine.Name() }

// Extract runs OCR and field extraction. Unsupported input is an error; an
// engine failure is reported inside the response with zero confidence so the
// caller can mark the document as failed.
func (p *Processor) Extract(ctx context.Context, filename, mimetype string, data []byte) (*dto.OCRResponse, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", apperr.ErrInvalidInput)
	}
	if _, err := DetectType(filename, mimetype); err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := p.engine.ExtractText(ctx, filename, mimetype, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Error("OCR processing failed",
			zap.String("engine", p.engine.Name()),
			zap.String("file", filename),
			zap.Error(err),
		)
		return &dto.OCRResponse{
			Text:          failedText,
			ExtractedData: models.ExtractedData{Error: err.Error()},
			Confidence:    0,
		}, nil
	}

	extracted := ExtractFinancialData(text)
	if extracted.Amount == "" && p.structurer != nil && text != "" {
		p.enrich(ctx, text, &extracted)
	}
	extracted.Confidence = defaultConfidence

	p.logger.Info("OCR extraction completed",
		zap.String("engine", p.engine.Name()),
		zap.String("file", filename),
		zap.Int("text_length", len(text)),
		zap.String("amount", extracted.Amount),
		zap.String("category", extracted.Category),
		zap.Duration("duration", time.Since(start)),
	)

	return &dto.OCRResponse{
		Text:          text,
		ExtractedData: extracted,
		Confidence:    defaultConfidence,
	}, nil
}

func (p *Processor) enrich(ctx context.Context, text string, data *models.ExtractedData) {
	fields, err := p.structurer.Structure(ctx, text)
	if err != nil {
		p.logger.Warn("Structured extraction failed", zap.Error(err))
		return
	}

	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&data.Amount, fields.Amount)
	fill(&data.Date, fields.Date)
	fill(&data.DueDate, fields.DueDate)
	fill(&data.Vendor, fields.Vendor)
	fill(&data.InvoiceNumber, fields.InvoiceNumber)
	fill(&data.Category, fields.Category)
	if data.Amount != "" && data.Description == "" {
		data.Description = fields.Description
		if data.Description == "" {
			data.Description = describe(*data)
		}
	}
}

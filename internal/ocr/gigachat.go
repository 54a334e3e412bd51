package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gestor-financiero/internal/models"
	"gestor-financiero/pkg/config"

	"github.com/Role1776/gigago"
	"go.uber.org/zap"
)

const transcribePrompt = `Extrae todo el texto de este documento financiero (boleta, factura, comprobante).
Devuelve SOLO el texto visible, conservando las líneas, sin comentarios.
Si el texto no se puede leer, devuelve una cadena vacía.`

const structureInstruction = `Eres un asistente que lee boletas y facturas chilenas.
Responde SOLO con un objeto JSON con las claves:
"amount" (total a pagar, solo dígitos y punto decimal), "date" (DD/MM/YYYY),
"due_date", "vendor", "invoice_number", "category", "description".
Usa una cadena vacía para lo que no encuentres.`

// GigaChatEngine reads images through the GigaChat vision endpoint. PDFs with a
// text layer are read locally.
type GigaChatEngine struct {
	client *gigago.Client
	model  *gigago.GenerativeModel
	vision *visionClient
	logger *zap.Logger
}

func NewGigaChatEngine(ctx context.Context, cfg *config.GigaChatConfig, logger *zap.Logger) (*GigaChatEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GIGACHAT_API_KEY is required for the gigachat provider")
	}

	opts := []gigago.Option{gigago.WithCustomScope(cfg.Scope)}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	model := client.GenerativeModel(gigaChatModel)
	model.SystemInstruction = structureInstruction
	model.Temperature = 0.1

	return &GigaChatEngine{
		client: client,
		model:  model,
		vision: newVisionClient(cfg.APIKey, cfg.Scope, cfg.InsecureSkipVerify, logger),
		logger: logger,
	}, nil
}

func (e *GigaChatEngine) Name() string { return "gigachat" }

func (e *GigaChatEngine) ExtractText(ctx context.Context, filename, mimetype string, data []byte) (string, error) {
	kind, err := DetectType(filename, mimetype)
	if err != nil {
		return "", err
	}

	if kind == mimePDF {
		text, err := pdfText(data, e.logger)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}

	fileID, err := e.vision.Upload(ctx, filename, kind, data)
	if err != nil {
		return "", err
	}
	text, err := e.vision.Read(ctx, fileID, transcribePrompt)
	if err != nil {
		return "", err
	}

	e.logger.Info("Text extracted via GigaChat Vision", zap.String("file", filename), zap.Int("text_length", len(text)))
	return text, nil
}

// Structure asks the model to fill the fields the regex pass could not.
func (e *GigaChatEngine) Structure(ctx context.Context, text string) (*models.ExtractedData, error) {
	resp, err := e.model.Generate(ctx, []gigago.Message{
		{Role: gigago.RoleUser, Content: text},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from GigaChat")
	}
	return parseStructured(resp.Choices[0].Message.Content)
}

func (e *GigaChatEngine) Close() error {
	if e.client != nil {
		e.client.Close()
	}
	return nil
}

// parseStructured reads the JSON object out of a model answer, tolerating
// markdown fences around it.
func parseStructured(content string) (*models.ExtractedData, error) {
	start, end := strings.Index(content, "{"), strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model answer")
	}

	var raw struct {
		Amount        json.RawMessage `json:"amount"`
		Date          string          `json:"date"`
		DueDate       string          `json:"due_date"`
		Vendor        string          `json:"vendor"`
		InvoiceNumber string          `json:"invoice_number"`
		Category      string          `json:"category"`
		Description   string          `json:"description"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode model answer: %w", err)
	}

	data := &models.ExtractedData{
		Date:          raw.Date,
		DueDate:       raw.DueDate,
		Vendor:        raw.Vendor,
		InvoiceNumber: raw.InvoiceNumber,
		Category:      raw.Category,
		Description:   raw.Description,
	}
	if amount := strings.Trim(string(raw.Amount), `" `); amount != "" && amount != "null" {
		if normalized, ok := parseLocalizedAmount(amount); ok {
			data.Amount = normalized
		}
	}
	return data, nil
}

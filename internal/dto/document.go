package dto

import "gestor-financiero/internal/models"

type DocumentResponse struct {
	ID               string `json:"id"`
	Filename         string `json:"filename"`
	OriginalFilename string `json:"originalFilename"`
	Mimetype         string `json:"mimetype"`
	Size             int64  `json:"size"`
	Bucket           string `json:"bucket"`
	ObjectName       string `json:"objectName"`
	Status           string `json:"status"`
	OCRProcessed     bool   `json:"ocr_processed"`
	DownloadURL      string `json:"downloadUrl"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type UploadResponse struct {
	Message  string           `json:"message"`
	Document DocumentResponse `json:"document"`
}

type DocumentListResponse struct {
	Documents []DocumentResponse `json:"documents"`
}

type ObjectResponse struct {
	Filename     string `json:"filename"`
	ObjectName   string `json:"objectName"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
	DownloadURL  string `json:"downloadUrl"`
}

type ObjectListResponse struct {
	Objects []ObjectResponse `json:"objects"`
}

type OCRDataResponse struct {
	DocumentID    string               `json:"document_id"`
	Status        string               `json:"status"`
	FullText      string               `json:"full_text"`
	ExtractedData models.ExtractedData `json:"extracted_data"`
	Confidence    float64              `json:"confidence"`
	CreatedAt     string               `json:"created_at"`
}

type ProcessResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// CreateFromDocumentRequest lets the reviewer override what OCR extracted.
// Empty fields keep the extracted value.
type CreateFromDocumentRequest struct {
	Amount          string `json:"amount"`
	Date            string `json:"date"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	TransactionType string `json:"transaction_type"`
}

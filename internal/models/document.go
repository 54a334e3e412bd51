package models

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	StatusUploaded               DocumentStatus = "uploaded"
	StatusProcessedPendingReview DocumentStatus = "processed_pending_review"
	StatusTransactionCreated     DocumentStatus = "transaction_created"
	StatusErrorOCR               DocumentStatus = "error_ocr"
)

// allowedFrom lists, for each target status, the statuses a document may be in
// before moving there. error_ocr can be re-entered and retried into
// processed_pending_review; transaction_created is final.
var allowedFrom = map[DocumentStatus][]DocumentStatus{
	StatusProcessedPendingReview: {StatusUploaded, StatusProcessedPendingReview, StatusErrorOCR},
	StatusErrorOCR:               {StatusUploaded, StatusProcessedPendingReview, StatusErrorOCR},
	StatusTransactionCreated:     {StatusProcessedPendingReview},
}

// AllowedFrom returns the source statuses permitted for a move to `to`.
func AllowedFrom(to DocumentStatus) []DocumentStatus {
	return allowedFrom[to]
}

func (s DocumentStatus) CanTransitionTo(to DocumentStatus) bool {
	for _, from := range allowedFrom[to] {
		if from == s {
			return true
		}
	}
	return false
}

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessedPendingReview, StatusTransactionCreated, StatusErrorOCR:
		return true
	}
	return false
}

type Document struct {
	ID               uuid.UUID      `db:"id"`
	UserID           uuid.UUID      `db:"user_id"`
	Filename         string         `db:"filename"`
	OriginalFilename string         `db:"original_filename"`
	Mimetype         string         `db:"mimetype"`
	Size             int64          `db:"size"`
	BucketName       string         `db:"bucket_name"`
	ObjectName       string         `db:"object_name"`
	Status           DocumentStatus `db:"status"`
	OCRProcessed     bool           `db:"ocr_processed"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// OCRResult is written once per processing attempt; the newest row wins.
type OCRResult struct {
	ID            uuid.UUID     `db:"id"`
	DocumentID    uuid.UUID     `db:"document_id"`
	FullText      string        `db:"full_text"`
	ExtractedData ExtractedData `db:"extracted_data"`
	Confidence    float64       `db:"confidence"`
	CreatedAt     time.Time     `db:"created_at"`
}

// ExtractedData holds the structured fields parsed from OCR text. Amount is
// kept as the raw string so that normalisation happens in one place.
type ExtractedData struct {
	Amount        string  `json:"amount,omitempty"`
	Date          string  `json:"date,omitempty"`
	DueDate       string  `json:"due_date,omitempty"`
	Description   string  `json:"description,omitempty"`
	Vendor        string  `json:"vendor,omitempty"`
	InvoiceNumber string  `json:"invoice_number,omitempty"`
	Category      string  `json:"category,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Error         string  `json:"error,omitempty"`
}

package dto

import "gestor-financiero/internal/models"

// FromExtractionRequest is what the document service sends to the ledger
// once a reviewer confirms a document.
type FromExtractionRequest struct {
	DocumentID      string               `json:"document_id"`
	ExtractedData   models.ExtractedData `json:"extracted_data"`
	TransactionType string               `json:"transaction_type,omitempty"`
}

type ManualTransactionRequest struct {
	DocumentID      string `json:"document_id,omitempty"`
	Amount          string `json:"amount"`
	Date            string `json:"date"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	TransactionType string `json:"transaction_type"`
}

type TransactionResponse struct {
	ID              string  `json:"id"`
	DocumentID      *string `json:"document_id"`
	Amount          string  `json:"amount"`
	Date            string  `json:"date"`
	Description     string  `json:"description"`
	CategoryID      *string `json:"category_id"`
	CategoryName    string  `json:"category_name,omitempty"`
	CategoryColor   string  `json:"category_color,omitempty"`
	TransactionType string  `json:"transaction_type"`
	Source          string  `json:"source"`
	Verified        bool    `json:"verified"`
	CreatedAt       string  `json:"created_at"`
}

type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

type CategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type CategoryListResponse struct {
	Categories []CategoryResponse `json:"categories"`
}

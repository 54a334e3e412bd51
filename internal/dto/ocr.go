package dto

import "gestor-financiero/internal/models"

// OCRResponse is the wire format of the OCR capability's POST /process.
type OCRResponse struct {
	Text          string               `json:"text"`
	ExtractedData models.ExtractedData `json:"extracted_data"`
	Confidence    float64              `json:"confidence"`
}

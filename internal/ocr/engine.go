package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gestor-financiero/internal/apperr"
)

const (
	mimePDF  = "application/pdf"
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
)

// Engine turns a document's bytes into plain text.
type Engine interface {
	Name() string
	ExtractText(ctx context.Context, filename, mimetype string, data []byte) (string, error)
}

// DetectType resolves the media type from the declared mimetype, falling back
// to the file extension. Anything other than PDF, JPEG or PNG is rejected.
func DetectType(filename, mimetype string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mimetype)) {
	case mimePDF:
		return mimePDF, nil
	case mimeJPEG, "image/jpg", "image/pjpeg":
		return mimeJPEG, nil
	case mimePNG:
		return mimePNG, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return mimePDF, nil
	case ".jpg", ".jpeg":
		return mimeJPEG, nil
	case ".png":
		return mimePNG, nil
	}
	return "", fmt.Errorf("%w: unsupported file type %q (supported: jpg, jpeg, png, pdf)", apperr.ErrInvalidInput, mimetype)
}

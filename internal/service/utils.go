package service

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// sanitizeUTF8 drops invalid UTF-8 bytes so OCR text can be stored in a
// PostgreSQL TEXT column.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

var allowedMimetypes = map[string]string{
	"application/pdf": "application/pdf",
	"image/jpeg":      "image/jpeg",
	"image/jpg":       "image/jpeg",
	"image/pjpeg":     "image/jpeg",
	"image/png":       "image/png",
}

var mimetypeByExt = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// normalizeMimetype maps the declared type (or, for generic types, the file
// extension) onto one of the accepted upload types. ok is false for anything
// else.
func normalizeMimetype(declared, filename string) (string, bool) {
	declared = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	if m, ok := allowedMimetypes[declared]; ok {
		return m, true
	}
	if declared == "" || declared == "application/octet-stream" {
		m, ok := mimetypeByExt[strings.ToLower(filepath.Ext(filename))]
		return m, ok
	}
	return "", false
}

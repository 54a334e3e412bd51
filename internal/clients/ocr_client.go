package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/dto"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// OCRClient posts documents to the OCR service's /process endpoint.
type OCRClient struct {
	httpClient *http.Client
	baseURL    string
	backoff    func() retry.Backoff
	logger     *zap.Logger
}

func NewOCRClient(baseURL string, timeout time.Duration, logger *zap.Logger) *OCRClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OCRClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
		},
		logger: logger,
	}
}

// Extract sends the file as multipart field "file". Connection failures are
// retried briefly; timeouts and error responses are not.
func (c *OCRClient) Extract(ctx context.Context, filename, mimetype string, data []byte) (*dto.OCRResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", mimetype)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}
	payload := body.Bytes()

	var result dto.OCRResponse
	err = retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			err = transportError("ocr service", err)
			if errors.Is(err, apperr.ErrServiceUnavailable) {
				c.logger.Warn("OCR service unreachable, retrying", zap.Error(err))
				return retry.RetryableError(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return statusError("ocr service", resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("%w: malformed OCR response: %v", apperr.ErrInternal, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

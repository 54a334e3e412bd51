package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/dto"

	"go.uber.org/zap"
)

// LedgerClient calls the financial service with the end user's credentials.
type LedgerClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewLedgerClient(baseURL string, timeout time.Duration, logger *zap.Logger) *LedgerClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LedgerClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// CreateFromExtraction posts to /transactions/from-extraction, forwarding the
// caller's Authorization header unchanged.
func (c *LedgerClient) CreateFromExtraction(ctx context.Context, authorization string, req *dto.FromExtractionRequest) (*dto.TransactionResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions/from-extraction", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if authorization != "" {
		httpReq.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError("financial service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := statusError("financial service", resp)
		c.logger.Warn("Ledger rejected transaction",
			zap.String("document_id", req.DocumentID),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return nil, err
	}

	var tx dto.TransactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, fmt.Errorf("%w: malformed ledger response: %v", apperr.ErrInternal, err)
	}
	return &tx, nil
}

package ocr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	gigaChatOAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	gigaChatBaseURL  = "https://gigachat.devices.sberbank.ru/api/v1"
	gigaChatModel    = "GigaChat"
)

var errTokenExpired = errors.New("access token expired")

// Phrases the model answers with when it refuses to read a file.
var refusalPhrases = []string{
	"не могу помочь",
	"не могу обработать",
	"предоставьте содержимое",
	"предоставь содержимое",
	"не могу извлечь",
	"no puedo",
	"cannot help",
	"cannot process",
	"please provide",
}

// visionClient talks to the GigaChat REST API directly: files upload and chat
// completions with attachments are not covered by the SDK.
type visionClient struct {
	httpClient *http.Client
	oauthURL   string
	baseURL    string
	apiKey     string
	scope      string
	logger     *zap.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newVisionClient(apiKey, scope string, insecure bool, logger *zap.Logger) *visionClient {
	httpClient := &http.Client{Timeout: 60 * time.Second}
	if insecure {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		logger.Warn("HTTP client TLS certificate verification is disabled")
	}
	return &visionClient{
		httpClient: httpClient,
		oauthURL:   gigaChatOAuthURL,
		baseURL:    gigaChatBaseURL,
		apiKey:     apiKey,
		scope:      scope,
		logger:     logger,
	}
}

// accessToken returns the cached token, refreshing it a minute before expiry.
func (v *visionClient) accessToken(ctx context.Context, force bool) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !force && v.token != "" && time.Now().Before(v.expiresAt.Add(-time.Minute)) {
		return v.token, nil
	}

	rqUID := uuid.New().String()
	form := url.Values{}
	form.Set("scope", v.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create OAuth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", rqUID)
	req.Header.Set("Authorization", "Basic "+v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		v.logger.Error("OAuth request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("rq_uid", rqUID),
		)
		return "", fmt.Errorf("OAuth failed with status %d: %s", resp.StatusCode, string(body))
	}

	var oauthResp struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&oauthResp); err != nil {
		return "", fmt.Errorf("failed to decode OAuth response: %w", err)
	}
	if oauthResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in OAuth response")
	}

	v.token = oauthResp.AccessToken
	switch {
	case oauthResp.ExpiresIn > 0:
		v.expiresAt = time.Now().Add(time.Duration(oauthResp.ExpiresIn) * time.Second)
	case oauthResp.ExpiresAt > 0:
		v.expiresAt = time.UnixMilli(oauthResp.ExpiresAt)
	default:
		v.expiresAt = time.Now().Add(30 * time.Minute)
	}
	return v.token, nil
}

// withToken runs call once, and once more with a fresh token on a 401.
func (v *visionClient) withToken(ctx context.Context, call func(token string) error) error {
	token, err := v.accessToken(ctx, false)
	if err != nil {
		return err
	}
	err = call(token)
	if !errors.Is(err, errTokenExpired) {
		return err
	}
	if token, err = v.accessToken(ctx, true); err != nil {
		return err
	}
	return call(token)
}

// Upload stores the file with purpose=general so it can be attached to a
// completion request.
func (v *visionClient) Upload(ctx context.Context, filename, mimetype string, data []byte) (string, error) {
	var fileID string
	err := v.withToken(ctx, func(token string) error {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		if err := writer.WriteField("purpose", "general"); err != nil {
			return fmt.Errorf("failed to write purpose field: %w", err)
		}
		part, err := writer.CreatePart(map[string][]string{
			"Content-Type":        {mimetype},
			"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)},
		})
		if err != nil {
			return fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return fmt.Errorf("failed to copy file: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("failed to close writer: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/files", &body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := v.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to upload file: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return errTokenExpired
		case resp.StatusCode == http.StatusRequestEntityTooLarge:
			return fmt.Errorf("file too large for GigaChat upload")
		case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(b))
		}

		var uploadResp struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		fileID = uploadResp.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	v.logger.Info("File uploaded to GigaChat", zap.String("file_id", fileID))
	return fileID, nil
}

// Read asks the model to transcribe an uploaded file.
func (v *visionClient) Read(ctx context.Context, fileID, prompt string) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"model": gigaChatModel,
		"messages": []map[string]interface{}{
			{
				"role":        "user",
				"content":     prompt,
				"attachments": [][]string{{fileID}},
			},
		},
		"temperature": 0.3,
		"stream":      false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var text string
	err = v.withToken(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := v.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			return errTokenExpired
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("vision API failed with status %d: %s", resp.StatusCode, string(b))
		}

		var visionResp struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&visionResp); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if len(visionResp.Choices) == 0 {
			return fmt.Errorf("no response from Vision API")
		}
		text = strings.TrimSpace(visionResp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}

	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			v.logger.Warn("Model refused to transcribe document", zap.String("message", text))
			return "", fmt.Errorf("model returned error message: %s", text)
		}
	}
	return text, nil
}

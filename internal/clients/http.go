// Package clients holds the service-to-service HTTP clients used by the
// document service.
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"gestor-financiero/internal/apperr"
)

// errorBody is the JSON error envelope every service responds with.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusError maps a non-2xx response back onto the error taxonomy, keeping
// the downstream message.
func statusError(service string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	msg := string(raw)
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return fmt.Errorf("%w: %s responded %d: %s", apperr.FromStatus(resp.StatusCode), service, resp.StatusCode, msg)
}

// transportError classifies failures that never produced a response.
func transportError(service string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s did not answer in time", apperr.ErrUpstreamTimeout, service)
	}
	return fmt.Errorf("%w: %s unreachable: %v", apperr.ErrServiceUnavailable, service, err)
}

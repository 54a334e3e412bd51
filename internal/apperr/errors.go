// Package apperr holds the error taxonomy shared by every service and its
// mapping onto HTTP responses. Callers wrap these sentinels with fmt.Errorf
// and match them with errors.Is.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTransition  = errors.New("invalid document status transition")

	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrUpstreamTimeout    = errors.New("upstream timeout")
	ErrInternal           = errors.New("internal error")
)

type kind struct {
	err    error
	status int
	code   string
}

// Order matters: more specific sentinels come first.
var kinds = []kind{
	{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{ErrAlreadyExists, http.StatusBadRequest, "ALREADY_EXISTS"},
	{ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{ErrInvalidTransition, http.StatusBadRequest, "INVALID_TRANSITION"},
	{ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{ErrStorageUnavailable, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
	{ErrServiceUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	{ErrUpstreamTimeout, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"},
}

// Status returns the HTTP status code a client should see for err.
func Status(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Code returns a stable machine-readable code for err.
func Code(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "INTERNAL_ERROR"
}

// Message returns the client-facing message for err. Internal errors never
// leak their wrapped detail.
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

// FromStatus converts a downstream HTTP status back into a sentinel so that
// service-to-service calls keep the taxonomy intact.
func FromStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return ErrInvalidInput
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return ErrServiceUnavailable
	case http.StatusGatewayTimeout:
		return ErrUpstreamTimeout
	default:
		return ErrInternal
	}
}

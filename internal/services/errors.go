package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrExternalTool    = errors.New("external tool error")
	ErrExternalService = errors.New("external service error")
	ErrResource        = errors.New("resource error")
	ErrConfiguration   = errors.New("configuration error")
)

// markers lists the sentinels in the order they are checked when classifying.
var markers = []error{
	ErrValidation,
	ErrNotFound,
	ErrExternalTool,
	ErrExternalService,
	ErrResource,
	ErrConfiguration,
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above; nil falls back to ErrExternalTool.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Marker returns the taxonomy sentinel carried by err, or nil.
func Marker(err error) error {
	if err == nil {
		return nil
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

// HTTPStatus maps an error to the status code the API surface should answer with.
func HTTPStatus(err error) int {
	switch Marker(err) {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrExternalService:
		return http.StatusBadGateway
	case ErrResource:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the single-line message exposed through job status and
// API responses.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if idx := strings.IndexAny(msg, "\r\n"); idx >= 0 {
		msg = strings.TrimSpace(msg[:idx])
	}
	if msg == "" {
		return "unknown error"
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Copyright 2024-2026 Aiku AI

package platform

import (
	"errors"
	"fmt"
	"net/http"
)

// Platform error codes the relay cares about.
const (
	// CodePayloadTooLarge means the request body exceeded the platform's
	// size limit. It is the only code delivery treats as retryable.
	CodePayloadTooLarge = 40005
	// CodeUnknownMessage means the target message no longer exists.
	CodeUnknownMessage = 10008
	// CodeUnknownChannel means the target channel no longer exists.
	CodeUnknownChannel = 10003
)

// Error is a structured platform API failure.
type Error struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("platform: %s (status %d, code %d)", e.Message, e.Status, e.Code)
}

// IsCode reports whether err is a platform error with the given code.
func IsCode(err error, code int) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == code
}

// IsNotFound reports whether err indicates the target resource is gone.
func IsNotFound(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Status == http.StatusNotFound ||
		pe.Code == CodeUnknownMessage || pe.Code == CodeUnknownChannel
}

// Copyright 2024-2026 Aiku AI

package platform

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsCode(t *testing.T) {
	t.Parallel()
	err := &Error{Status: 413, Code: CodePayloadTooLarge, Message: "too big"}
	if !IsCode(err, CodePayloadTooLarge) {
		t.Error("IsCode should match the payload-too-large code")
	}
	if IsCode(err, CodeUnknownMessage) {
		t.Error("IsCode must not match a different code")
	}
	if IsCode(errors.New("plain"), CodePayloadTooLarge) {
		t.Error("IsCode must not match non-platform errors")
	}
	wrapped := fmt.Errorf("deliver: %w", err)
	if !IsCode(wrapped, CodePayloadTooLarge) {
		t.Error("IsCode should unwrap")
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"status 404", &Error{Status: 404}, true},
		{"unknown message code", &Error{Status: 400, Code: CodeUnknownMessage}, true},
		{"unknown channel code", &Error{Status: 400, Code: CodeUnknownChannel}, true},
		{"forbidden", &Error{Status: 403, Code: 50013}, false},
		{"plain error", errors.New("nope"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound: got %v, want %v", got, tt.want)
			}
		})
	}
}

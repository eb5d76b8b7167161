package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("failed to convert: %w", DocumentProcessing(errors.New("boom")))

	kind, ok := KindOf(err)
	if !ok {
		t.Fatal("Expected kind to be found")
	}
	if kind != KindDocumentProcessing {
		t.Errorf("Expected kind %s, got %s", KindDocumentProcessing, kind)
	}
}

func TestIsNested(t *testing.T) {
	err := SpeechSynthesis(RateLimit(errors.New("429")))

	if !Is(err, KindSpeechSynthesis) {
		t.Error("Expected speech synthesis kind")
	}
	if !Is(err, KindRateLimit) {
		t.Error("Expected nested rate limit kind")
	}
	if Is(err, KindAuth) {
		t.Error("Did not expect auth kind")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", Transient(errors.New("503")), true},
		{"rate limit", RateLimit(errors.New("429")), true},
		{"validation", Validation(errors.New("bad speaker")), true},
		{"auth", Auth(errors.New("401")), false},
		{"bad request", BadRequest(errors.New("400")), false},
		{"plain", errors.New("plain"), false},
		{"canceled", Transient(context.Canceled), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := SpeechSynthesis(errors.New("Canceled: voice not found"))
	if err.Error() != "speech synthesis failed: Canceled: voice not found" {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	if PublicMessage(UnsupportedFormat("file type 'exe' is not supported")) != "file type 'exe' is not supported" {
		t.Errorf("Unexpected public message: %s", PublicMessage(UnsupportedFormat("file type 'exe' is not supported")))
	}
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{429, KindRateLimit},
		{401, KindAuth},
		{403, KindAuth},
		{408, KindTransient},
		{502, KindTransient},
		{404, KindBadRequest},
	}

	for _, tt := range tests {
		kind, _ := KindOf(FromStatus(tt.status, errors.New("upstream")))
		if kind != tt.want {
			t.Errorf("FromStatus(%d) = %s, want %s", tt.status, kind, tt.want)
		}
	}
}

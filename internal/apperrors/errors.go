package apperrors

import (
	"context"
	"errors"
	"strings"
)

// Kind classifies an error for propagation and retry decisions
type Kind string

const (
	// Pipeline taxonomy
	KindUnsupportedFormat  Kind = "unsupported_format"
	KindDocumentProcessing Kind = "document_processing"
	KindScriptGeneration   Kind = "script_generation"
	KindSpeechSynthesis    Kind = "speech_synthesis"
	KindConfiguration      Kind = "configuration"

	// Upstream call classification
	KindTransient  Kind = "transient"
	KindRateLimit  Kind = "rate_limit"
	KindAuth       Kind = "auth"
	KindValidation Kind = "validation"
	KindBadRequest Kind = "bad_request"
	KindCanceled   Kind = "canceled"
)

// Error carries a kind, a message safe to show callers and the internal cause
type Error struct {
	Kind        Kind
	SafeMessage string
	Cause       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.SafeMessage)
	if msg == "" {
		msg = defaultSafeMessage(e.Kind)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindUnsupportedFormat:
		return "unsupported file format"
	case KindDocumentProcessing:
		return "document processing failed"
	case KindScriptGeneration:
		return "script generation failed"
	case KindSpeechSynthesis:
		return "speech synthesis failed"
	case KindConfiguration:
		return "invalid configuration"
	case KindTransient:
		return "temporary upstream error"
	case KindRateLimit:
		return "rate limit exceeded"
	case KindAuth:
		return "authentication failed"
	case KindValidation:
		return "response validation failed"
	case KindBadRequest:
		return "request rejected by upstream API"
	case KindCanceled:
		return "operation canceled"
	default:
		return "request failed"
	}
}

// New creates a kinded error
func New(kind Kind, safeMessage string, cause error) error {
	return &Error{
		Kind:        kind,
		SafeMessage: strings.TrimSpace(safeMessage),
		Cause:       cause,
	}
}

func UnsupportedFormat(msg string) error {
	return New(KindUnsupportedFormat, msg, nil)
}

func DocumentProcessing(err error) error {
	return New(KindDocumentProcessing, "", err)
}

func ScriptGeneration(err error) error {
	return New(KindScriptGeneration, "", err)
}

func SpeechSynthesis(err error) error {
	return New(KindSpeechSynthesis, "", err)
}

func Configuration(msg string) error {
	return New(KindConfiguration, msg, nil)
}

func Transient(err error) error {
	return New(KindTransient, "", err)
}

func RateLimit(err error) error {
	return New(KindRateLimit, "", err)
}

func Auth(err error) error {
	return New(KindAuth, "", err)
}

func Validation(err error) error {
	return New(KindValidation, "", err)
}

func BadRequest(err error) error {
	return New(KindBadRequest, "", err)
}

// FromStatus classifies an error returned by an upstream HTTP API
func FromStatus(status int, err error) error {
	switch {
	case status == 429:
		return RateLimit(err)
	case status == 401 || status == 403:
		return Auth(err)
	case status == 408 || status >= 500:
		return Transient(err)
	case status >= 400:
		return BadRequest(err)
	default:
		return Transient(err)
	}
}

// KindOf returns the outermost kind found in the error chain
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// Is reports whether any error in the chain carries the given kind
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// IsCanceled reports whether the error stems from context cancellation
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || Is(err, KindCanceled)
}

// IsRetryable reports whether retrying the call may succeed.
// Validation failures are retried because model output is non-deterministic.
func IsRetryable(err error) bool {
	if IsCanceled(err) {
		return false
	}
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	return kind == KindTransient || kind == KindRateLimit || kind == KindValidation
}

// PublicMessage returns a message suitable for API responses
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.SafeMessage != "" {
			return e.SafeMessage
		}
		return defaultSafeMessage(e.Kind)
	}
	return err.Error()
}

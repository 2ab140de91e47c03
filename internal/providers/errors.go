package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a provider failure so the chain runner can decide
// retry vs. skip vs. abort without provider-specific knowledge.
type ErrorKind string

const (
	// KindModelNotFound means the candidate is permanently unusable for this
	// request; the runner skips it without retrying.
	KindModelNotFound ErrorKind = "model_not_found"
	// KindMissingCredential and KindPermissionDenied abort the whole chain;
	// falling back cannot fix an auth problem.
	KindMissingCredential ErrorKind = "missing_credential"
	KindPermissionDenied  ErrorKind = "permission_denied"
	// KindRateLimited and KindServiceOverloaded are transient; the same
	// candidate is retried with backoff before advancing.
	KindRateLimited       ErrorKind = "rate_limited"
	KindServiceOverloaded ErrorKind = "service_overloaded"
	KindTimeout           ErrorKind = "timeout"
	KindSchemaValidation  ErrorKind = "schema_validation"
	KindExtraction        ErrorKind = "extraction"
	KindStorageFailure    ErrorKind = "storage_failure"
	KindNetwork           ErrorKind = "network"
	KindCancelled         ErrorKind = "cancelled"
)

// Error is the typed failure every adapter surfaces.
type Error struct {
	Kind     ErrorKind
	Provider Provider
	Model    string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Provider))
	if e.Model != "" {
		b.WriteString(":")
		b.WriteString(e.Model)
	}
	fmt.Fprintf(&b, " [%s]", e.Kind)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classification from err, defaulting to KindNetwork for
// unclassified failures and mapping context errors to Timeout/Cancelled.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindNetwork
}

// ClassifyStatus maps an HTTP response status to an ErrorKind. Providers with
// richer error envelopes decode them first and call this as the fallback.
func ClassifyStatus(provider Provider, model string, status int, detail string) *Error {
	kind := KindNetwork
	switch {
	case status == http.StatusNotFound:
		kind = KindModelNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindPermissionDenied
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusServiceUnavailable || status == 529:
		kind = KindServiceOverloaded
	case status >= http.StatusInternalServerError:
		kind = KindServiceOverloaded
	case status >= http.StatusBadRequest:
		kind = KindNetwork
	}
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = http.StatusText(status)
	}
	return &Error{
		Kind:     kind,
		Provider: provider,
		Model:    model,
		Err:      fmt.Errorf("status %d: %s", status, detail),
	}
}

// Wrap classifies transport-level failures from http.Client.Do, preserving
// context cancellation and deadline kinds.
func Wrap(provider Provider, model string, err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	kind := KindNetwork
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	}
	return &Error{Kind: kind, Provider: provider, Model: model, Err: err}
}

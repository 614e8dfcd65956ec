package ai

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KaramelBytes/instadash-cli/internal/apperr"
)

// Reason classifies why a model provider call failed.
type Reason string

const (
	ReasonAuth          Reason = "auth"
	ReasonRateLimited   Reason = "rate_limited"
	ReasonQuota         Reason = "quota_exceeded"
	ReasonModelNotFound Reason = "model_not_found"
	ReasonBadRequest    Reason = "bad_request"
	ReasonServer        Reason = "provider_error"
	ReasonUnreachable   Reason = "unreachable"
	ReasonOther         Reason = "other"
)

// ProviderError is a classified provider failure. API is set when the
// provider answered; Err holds the transport error otherwise.
type ProviderError struct {
	Reason     Reason
	API        *APIError
	Host       string
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	var cause string
	switch {
	case e.API != nil:
		cause = e.API.Error()
	case e.Err != nil:
		cause = e.Err.Error()
	}
	switch e.Reason {
	case ReasonRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), cause)
		}
		return "rate limited: " + cause
	case ReasonUnreachable:
		if e.Host != "" {
			return fmt.Sprintf("endpoint unreachable at %s: %s", e.Host, cause)
		}
		return "endpoint unreachable: " + cause
	case ReasonAuth:
		return "authentication failed: " + cause
	case ReasonOther:
		return cause
	}
	return string(e.Reason) + ": " + cause
}

func (e *ProviderError) Unwrap() error {
	if e.API != nil {
		return e.API
	}
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *ProviderError) Retryable() bool {
	return e.Reason == ReasonRateLimited || e.Reason == ReasonServer
}

// ReasonOf returns the provider failure reason in err's chain, or "".
func ReasonOf(err error) Reason {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}

// failure lifts a provider error into the application taxonomy. An unknown
// model is a configuration problem the caller can fix; everything else is
// an external failure.
func failure(model string, err error) *apperr.Error {
	msg := fmt.Sprintf("model %s failed", model)
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return apperr.External(msg, err)
	}
	var out *apperr.Error
	if pe.Reason == ReasonModelNotFound {
		out = apperr.Wrap(apperr.KindInput, fmt.Sprintf("model %s is not available", model), err)
	} else {
		out = apperr.External(msg, err)
	}
	out.WithContext("reason", string(pe.Reason))
	if pe.RetryAfter > 0 {
		out.WithContext("retry_after_s", int(pe.RetryAfter.Seconds()))
	}
	return out
}

func unreachable(host string, err error) *ProviderError {
	return &ProviderError{Reason: ReasonUnreachable, Host: host, Err: err}
}

// classifyAPIError maps a decoded error response onto a Reason. resp may be
// nil when the SDK already consumed the response.
func classifyAPIError(apiErr *APIError, resp *http.Response) *ProviderError {
	pe := &ProviderError{Reason: ReasonOther, API: apiErr}
	sc, msg, code := apiErr.StatusCode, apiErr.Message, apiErr.Code
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		pe.Reason = ReasonAuth
	case sc == http.StatusTooManyRequests:
		if code == "insufficient_quota" || code == "quota_exceeded" {
			pe.Reason = ReasonQuota
			break
		}
		pe.Reason = ReasonRateLimited
		pe.RetryAfter = retryAfter(resp)
	case sc == http.StatusNotFound:
		if code == "model_not_found" || containsAllFold(msg, "model", "not", "found") || containsAllFold(msg, "model", "does not exist") {
			pe.Reason = ReasonModelNotFound
		}
	case sc == http.StatusBadRequest:
		pe.Reason = ReasonBadRequest
	case code == "quota_exceeded" || containsAnyFold(msg, "quota", "billing", "limit exceeded"):
		pe.Reason = ReasonQuota
	case sc >= 500 && sc <= 599:
		pe.Reason = ReasonServer
		pe.RetryAfter = retryAfter(resp)
	}
	return pe
}

func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	if secs, err := parseRetryAfterSeconds(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

package llmerror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the closed taxonomy of chat failures.
type Kind string

const (
	KindAuth             Kind = "auth"
	KindConnectivity     Kind = "connectivity"
	KindRateLimit        Kind = "rate_limit"
	KindServer           Kind = "server"
	KindModelUnsupported Kind = "model_unsupported"
	KindNetwork          Kind = "network"
	KindTimeout          Kind = "timeout"
	KindStream           Kind = "stream"
	KindUnknown          Kind = "unknown"
)

// Error is a classified chat failure. Retryable is advisory: the engine
// never retries on its own, retry is always an explicit caller action.
type Error struct {
	Kind       Kind
	Message    string
	Status     int
	Retryable  bool
	RetryAfter time.Duration
	// Partial marks a stream failure where some output was already
	// produced before the error arrived.
	Partial bool
	Cause   error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ShouldRetry reports whether a retry is worth suggesting to the caller.
func (e *Error) ShouldRetry() bool {
	return e != nil && e.Retryable
}

// StatusError carries an HTTP status alongside an error message. Gateways
// wrap HTTP-level failures in this so classification can use the status
// before falling back to message heuristics.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// Connectivity builds the classification for a failed pre-flight probe.
func Connectivity(cause error) *Error {
	msg := "provider is unreachable"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Kind:      KindConnectivity,
		Message:   msg,
		Retryable: false,
		Cause:     cause,
	}
}

// Stream builds the classification for an in-band stream error or a stream
// that produced no output. partial marks whether content was already emitted.
func Stream(cause error, partial bool) *Error {
	msg := "stream failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Kind:      KindStream,
		Message:   msg,
		Retryable: true,
		Partial:   partial,
		Cause:     cause,
	}
}

var statusPattern = regexp.MustCompile(`(?i)status(?:\s+code)?[:\s]+(\d{3})`)

// Classify maps an arbitrary failure into the taxonomy. It inspects, in
// order: an already-classified error, an explicit nested cause (one level),
// an HTTP status if present, then message substrings. It never panics and
// never returns nil for a non-nil input.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	status := httpStatus(err)
	msg := err.Error()
	lower := strings.ToLower(msg)

	if e := classifyStatus(status, msg, err); e != nil {
		return e
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return &Error{Kind: KindTimeout, Message: msg, Retryable: true, Cause: err}
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "forbidden") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "authentication"):
		return &Error{Kind: KindAuth, Message: msg, Retryable: false, Cause: err}
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return &Error{Kind: KindRateLimit, Message: msg, Retryable: true, RetryAfter: 30 * time.Second, Cause: err}
	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "not supported") || strings.Contains(lower, "unsupported")):
		return &Error{Kind: KindModelUnsupported, Message: msg, Retryable: false, Cause: err}
	case strings.Contains(lower, "cors"):
		return &Error{Kind: KindNetwork, Message: msg, Retryable: false, Cause: err}
	case isNetworkError(err, lower):
		return &Error{Kind: KindNetwork, Message: msg, Retryable: true, Cause: err}
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "deadline exceeded"):
		return &Error{Kind: KindTimeout, Message: msg, Retryable: true, Cause: err}
	}

	return &Error{Kind: KindUnknown, Message: msg, Retryable: true, Cause: err}
}

func classifyStatus(status int, msg string, cause error) *Error {
	switch {
	case status == 401 || status == 403:
		return &Error{Kind: KindAuth, Message: msg, Status: status, Retryable: false, Cause: cause}
	case status == 429:
		return &Error{Kind: KindRateLimit, Message: msg, Status: status, Retryable: true, RetryAfter: 30 * time.Second, Cause: cause}
	case status >= 500 && status <= 599:
		return &Error{Kind: KindServer, Message: msg, Status: status, Retryable: true, RetryAfter: 5 * time.Second, Cause: cause}
	}
	return nil
}

func httpStatus(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		if status, convErr := strconv.Atoi(m[1]); convErr == nil {
			return status
		}
	}
	return 0
}

func isNetworkError(err error, lower string) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"dns",
		"broken pipe",
		"network is unreachable",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Package errs defines the error taxonomy shared across the pipeline.
// Failures are contained at the document level; these types let the
// orchestrator tell a retryable network hiccup from a terminally broken item.
package errs

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// FetchError wraps a network or HTTP-status failure while getting a page or
// document. Retryable on the next scheduled run.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError marks malformed markup on a fetched page. Terminal for the item,
// never for the run.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractionError marks a byte stream that is not a readable document
// container. Terminal for the item.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// DeliveryKind classifies notifier failures.
type DeliveryKind int

const (
	// DeliveryTransient covers network failures, 5xx and rate limiting;
	// retried with backoff inside the notifier.
	DeliveryTransient DeliveryKind = iota
	// DeliveryFormatRejected means the channel refused the formatted
	// payload; retried once as plain text inside the notifier.
	DeliveryFormatRejected
	// DeliveryPermanent covers bad credentials, unknown chat and similar;
	// surfaced to the caller, never retried.
	DeliveryPermanent
)

func (k DeliveryKind) String() string {
	switch k {
	case DeliveryTransient:
		return "transient"
	case DeliveryFormatRejected:
		return "format_rejected"
	default:
		return "permanent"
	}
}

// DeliveryError is a classified failure from the messaging channel.
type DeliveryError struct {
	Kind   DeliveryKind
	Status int
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("delivery %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("delivery %s: %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsTransient reports whether err looks like a short-lived network failure
// worth retrying. Classification by error type where possible, by message
// pattern otherwise.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind == DeliveryTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"deadline exceeded",
		"temporary failure",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

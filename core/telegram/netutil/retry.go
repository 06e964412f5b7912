// Package netutil classifies transport-level failures so callers can
// decide whether a retry is worthwhile.
package netutil

import (
	"errors"
	"net"
	"net/url"
)

// Retryable reports whether err is a transient network failure
// (timeout, refused dial, temporary resolver hiccup) that a fresh
// attempt may succeed on. Application-level errors are never
// retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
		if nested, ok := opErr.Err.(net.Error); ok && nested.Timeout() {
			return true
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			return Retryable(urlErr.Err)
		}
	}

	return false
}

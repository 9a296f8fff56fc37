package git

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Typed git errors enabling classification without string parsing upstream.
type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	Op, URL string
	Err     error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s unsupported protocol %s: %v", e.Op, e.URL, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

type RateLimitError struct {
	Op, URL string
	Err     error
}

func (e *RateLimitError) Error() string { return fmt.Sprintf("%s rate limited %s: %v", e.Op, e.URL, e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

type NetworkTimeoutError struct {
	Op, URL string
	Err     error
}

func (e *NetworkTimeoutError) Error() string { return fmt.Sprintf("%s timeout %s: %v", e.Op, e.URL, e.Err) }
func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

func classify(op, url string, err error) error {
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return &UnsupportedProtocolError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return &RateLimitError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "timeout"):
		return &NetworkTimeoutError{Op: op, URL: url, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, url, err)
}

func classifyCloneError(url string, err error) error { return classify("clone", url, err) }
func classifyFetchError(url string, err error) error { return classify("fetch", url, err) }

// isPermanentGitError reports failures that retrying cannot fix.
func isPermanentGitError(err error) bool {
	if err == nil {
		return false
	}
	var (
		authErr     *AuthError
		notFound    *NotFoundError
		unsupported *UnsupportedProtocolError
	)
	if errors.As(err, &authErr) || errors.As(err, &notFound) || errors.As(err, &unsupported) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "denied") ||
		strings.Contains(msg, "no such remote") || strings.Contains(msg, "invalid reference") ||
		strings.Contains(msg, "repository not found") {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return !nerr.Timeout()
	}
	return false
}

// classifyAttempt adapts the git error taxonomy to the retry loop.
// Rate limiting backs off three times longer than the base delay.
func classifyAttempt(err error) (bool, float64) {
	if isPermanentGitError(err) {
		return true, 1
	}
	if errors.As(err, new(*RateLimitError)) {
		return false, 3
	}
	return false, 1
}

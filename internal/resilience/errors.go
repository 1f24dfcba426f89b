package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// TransientError marks a failure that may succeed on a later attempt. Fetch
// failures carry the HTTP status that caused them; transport failures carry 0.
// RetryAfter holds the server's Retry-After hint, if any.
type TransientError struct {
	Err        error
	StatusCode int
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// StatusError builds the transient error for a retryable HTTP response.
func StatusError(url string, statusCode int) *TransientError {
	return NewTransientError(fmt.Errorf("fetch %s: status %d", url, statusCode), statusCode)
}

// ResponseError is StatusError with the Retry-After header of resp applied.
func ResponseError(url string, resp *http.Response) *TransientError {
	te := StatusError(url, resp.StatusCode)
	te.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	return te
}

// ParseRetryAfter reads a Retry-After value given either as delay seconds
// or as an HTTP date. Unparseable or past values yield 0.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(v)
	if err != nil || !at.After(now) {
		return 0
	}
	return at.Sub(now)
}

// IsNetworkFailure reports whether err came from the transport rather than
// from a server response.
func IsNetworkFailure(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// http.Client wraps most of these in *url.Error with a flattened message.
	msg := strings.ToLower(err.Error())
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

var networkPatterns = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"context deadline exceeded",
	"client.timeout exceeded",
	"server closed idle connection",
}

// IsRetryableStatus reports whether err carries a transient HTTP status.
// Transport failures are excluded: a page that timed out once is treated as
// unavailable rather than paying the timeout again.
func IsRetryableStatus(err error) bool {
	var te *TransientError
	if !errors.As(err, &te) {
		return false
	}
	return IsTransientHTTPStatus(te.StatusCode)
}

// IsTransientHTTPStatus returns true for statuses a well-behaved server uses
// to ask the client to come back later.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 429, // Too Many Requests
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

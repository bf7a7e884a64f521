package providers

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

const (
	ProbeContent   = "Hello"
	ProbeMaxTokens = 10

	networkErrorMessage = "Network error"

	connectivityDetails = "Could not connect to the server. This might be due to CORS restrictions or network connectivity issues."
)

// ClassifyStatus maps a failed probe status to a short diagnosis and a hint.
func ClassifyStatus(status int) (details, troubleshooting string) {
	switch status {
	case http.StatusUnauthorized:
		return "Authentication failed", "Please check that your API Key is correct"
	case http.StatusNotFound:
		return "Endpoint not found", "Please verify the Base URL is correct"
	case http.StatusTooManyRequests:
		return "Rate limit exceeded", "Please wait a moment and try again"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return "Server error", "The provider is experiencing issues. Please try again later"
	default:
		return fmt.Sprintf("HTTP %d", status), "Please check your configuration and try again"
	}
}

func MissingKeyResult(started time.Time) TestResult {
	return TestResult{
		Success:   false,
		Message:   "API Key is missing",
		Details:   "Please provide an API Key for this provider",
		Timestamp: started.UnixMilli(),
	}
}

func StatusFailureResult(status int, message string, elapsed time.Duration, started time.Time) TestResult {
	details, hint := ClassifyStatus(status)
	return TestResult{
		Success:        false,
		Message:        "Connection failed: " + message,
		Details:        details + ". " + hint,
		ResponseTimeMs: elapsedMs(elapsed),
		Timestamp:      started.UnixMilli(),
	}
}

func APIErrorResult(apiErr *APIError, elapsed time.Duration, started time.Time) TestResult {
	details := apiErr.Type
	if details == "" {
		details = apiErr.Status
	}
	if details == "" {
		details = "Unknown error type"
	}
	return TestResult{
		Success:        false,
		Message:        "API Error: " + apiErr.Message,
		Details:        details,
		ResponseTimeMs: elapsedMs(elapsed),
		Timestamp:      started.UnixMilli(),
	}
}

func NetworkErrorResult(err error, elapsed time.Duration, started time.Time) TestResult {
	details := connectivityDetails
	if !IsConnectivityError(err) {
		details = err.Error()
	}
	if details == "" {
		details = "Unknown error"
	}
	return TestResult{
		Success:        false,
		Message:        networkErrorMessage,
		Details:        details,
		ResponseTimeMs: elapsedMs(elapsed),
		Timestamp:      started.UnixMilli(),
	}
}

// ConnectionOutcome is the metrics label for a connection test result.
func ConnectionOutcome(r TestResult) string {
	switch {
	case r.Success:
		return "ok"
	case r.ResponseTimeMs == nil:
		return "missing_key"
	case r.Message == networkErrorMessage:
		return "network_error"
	default:
		return "failed"
	}
}

func SuccessResult(name string, elapsed time.Duration, started time.Time) TestResult {
	return TestResult{
		Success:        true,
		Message:        "Connection successful",
		Details:        "Successfully connected to " + name,
		ResponseTimeMs: elapsedMs(elapsed),
		Timestamp:      started.UnixMilli(),
	}
}

// IsConnectivityError reports whether err means the endpoint could not be
// reached at all (DNS, refused or reset connections, TLS handshake) as
// opposed to a failure after the server answered.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

func elapsedMs(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}

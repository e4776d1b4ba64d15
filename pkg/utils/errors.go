package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrDownload         = errors.New("image download failed")
	ErrConversion       = errors.New("image conversion failed")
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")
	ErrOtherHTTPError   = errors.New("other HTTP error (non-200)")
	ErrUnsupportedURL   = errors.New("unsupported image URL")
	ErrImageTooLarge    = errors.New("image exceeds max size")
	ErrParsing          = errors.New("parsing error")
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger errors
	ErrSemaphoreTimeout = errors.New("timeout acquiring semaphore")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
)

// DownloadError reports a failed fetch: either a non-200 status or a transport failure
type DownloadError struct {
	URL        string
	StatusCode int   // Non-zero when the server answered with a non-200 status
	Cause      error // Transport, body or filesystem cause (nil for status failures)
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Cause)
}

// Unwrap exposes the cause and a status class sentinel
func (e *DownloadError) Unwrap() []error {
	errs := []error{ErrDownload}
	switch {
	case e.StatusCode >= 400 && e.StatusCode < 500:
		errs = append(errs, ErrClientHTTPError)
	case e.StatusCode >= 500:
		errs = append(errs, ErrServerHTTPError)
	case e.StatusCode != 0:
		errs = append(errs, ErrOtherHTTPError)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// NewStatusError builds a DownloadError for a non-200 response
func NewStatusError(url string, statusCode int) *DownloadError {
	return &DownloadError{URL: url, StatusCode: statusCode}
}

// NewTransportError builds a DownloadError wrapping a transport or write failure
func NewTransportError(url string, cause error) *DownloadError {
	return &DownloadError{URL: url, Cause: cause}
}

// ConversionError reports a failed decode/encode while normalizing an image
type ConversionError struct {
	Path  string // Input file being converted
	Cause error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.Path, e.Cause)
}

// Unwrap exposes the sentinel and the cause
func (e *ConversionError) Unwrap() []error {
	return []error{ErrConversion, e.Cause}
}

// CategorizeError maps an error to a predefined category string for logging and the ledger
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	var dlErr *DownloadError
	if errors.As(err, &dlErr) && dlErr.StatusCode != 0 {
		switch dlErr.StatusCode {
		case http.StatusNotFound:
			return "HTTP_404"
		case http.StatusForbidden:
			return "HTTP_403"
		case http.StatusUnauthorized:
			return "HTTP_401"
		case http.StatusTooManyRequests:
			return "HTTP_429"
		}
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrClientHTTPError):
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrUnsupportedURL):
		return "Policy_UnsupportedURL"
	case errors.Is(err, ErrImageTooLarge):
		return "Policy_MaxSize"
	case errors.Is(err, ErrConversion):
		return "Content_Conversion"
	case errors.Is(err, ErrParsing):
		if strings.Contains(err.Error(), "URL") {
			return "Content_ParsingURL"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		return categorizeFilesystem(err)
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Network_Timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return categorizeFilesystem(err)
	}

	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_TimeoutGeneric"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	case strings.Contains(lowerErrMsg, "unexpected eof"):
		return "Network_UnexpectedEOF"
	}

	if errors.Is(err, ErrDownload) {
		return "Network_Other"
	}
	return "Unknown"
}

func categorizeFilesystem(err error) string {
	switch {
	case errors.Is(err, os.ErrPermission):
		return "Filesystem_Permission"
	case errors.Is(err, os.ErrNotExist):
		return "Filesystem_NotExist"
	case errors.Is(err, os.ErrExist):
		return "Filesystem_Exist"
	}
	return "Filesystem_Other"
}

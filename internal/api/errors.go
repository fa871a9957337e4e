package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrFulfillmentRequestFailed matches every failed fulfillment attempt,
// whether the transport failed or the API answered with a non-2xx status.
var ErrFulfillmentRequestFailed = errors.New("fulfillment request failed")

// RequestFailedError describes one failed fulfillment attempt. StatusCode is
// zero when no response was received.
type RequestFailedError struct {
	OrderNumber string
	StatusCode  int
	Reason      string
	Err         error
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("api: fulfill order %s: %s", e.OrderNumber, e.Reason)
}

// Is reports whether target is ErrFulfillmentRequestFailed.
func (e *RequestFailedError) Is(target error) bool {
	return target == ErrFulfillmentRequestFailed
}

func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

// reasonPhrase extracts the human-readable part of the status line, so
// "500 INTERNAL SERVER ERROR" yields "INTERNAL SERVER ERROR".
func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); reason != "" {
		return reason
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "HTTP " + code
}

// transportReason unwraps *url.Error so the message names the cause rather
// than repeating the method and URL.
func transportReason(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

package api_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/fulfillment-desk/internal/api"
	"github.com/kingrea/fulfillment-desk/internal/api/apitest"
)

func TestFulfillSendsPutWithCSRFHeader(t *testing.T) {
	fake := apitest.New(apitest.WithCSRFToken("tok-123"))
	fake.AddOrder("100001", api.StatusFulfillmentError)
	srv := fake.Serve()
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetCookies(map[string]string{"csrftoken": "tok-123"})

	outcome, err := client.Fulfill(context.Background(), "100001")
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if outcome.OrderNumber != "100001" || outcome.Status != api.StatusComplete {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	reqs := fake.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected exactly one request, got %d", len(reqs))
	}
	if reqs[0].Method != http.MethodPut || reqs[0].Path != "/api/v1/orders/100001/fulfill/" {
		t.Fatalf("unexpected request %+v", reqs[0])
	}
	if reqs[0].CSRFToken != "tok-123" {
		t.Fatalf("csrf header = %q, want tok-123", reqs[0].CSRFToken)
	}
}

func TestListOrdersPicksUpCSRFCookie(t *testing.T) {
	fake := apitest.New(apitest.WithPageSize(2))
	for _, number := range []string{"100001", "100002", "100003", "100004", "100005"} {
		fake.AddOrder(number, api.StatusFulfillmentError)
	}
	fake.AddOrder("100006", api.StatusComplete)
	srv := fake.Serve()
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	orders, err := client.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 6 {
		t.Fatalf("len(orders) = %d, want 6", len(orders))
	}
	if orders[5].Number != "100006" || orders[5].CanRetryFulfillment() {
		t.Fatalf("unexpected last order %+v", orders[5])
	}
	if !orders[0].CanRetryFulfillment() {
		t.Fatalf("expected first order to be retryable")
	}
	if orders[0].TotalExclTax.IsZero() {
		t.Fatalf("expected order total to decode")
	}

	// The list response set the csrftoken cookie; fulfillment must echo it.
	if _, err := client.Fulfill(context.Background(), "100003"); err != nil {
		t.Fatalf("fulfill after list: %v", err)
	}
	reqs := fake.Requests()
	last := reqs[len(reqs)-1]
	if last.CSRFToken != fake.CSRFToken() {
		t.Fatalf("csrf header = %q, want %q", last.CSRFToken, fake.CSRFToken())
	}
}

func TestFulfillServerErrorIsRequestFailed(t *testing.T) {
	fake := apitest.New(apitest.WithCSRFToken("tok"))
	fake.AddOrder("100002", api.StatusFulfillmentError)
	fake.FailNext("100002", 1)
	srv := fake.Serve()
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetCookies(map[string]string{"csrftoken": "tok"})

	_, err = client.Fulfill(context.Background(), "100002")
	if !errors.Is(err, api.ErrFulfillmentRequestFailed) {
		t.Fatalf("expected ErrFulfillmentRequestFailed, got %v", err)
	}
	var failed *api.RequestFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *RequestFailedError, got %T", err)
	}
	if failed.StatusCode != http.StatusInternalServerError || failed.Reason != "Internal Server Error" {
		t.Fatalf("unexpected failure %+v", failed)
	}
	if failed.OrderNumber != "100002" {
		t.Fatalf("order number = %q", failed.OrderNumber)
	}

	// The scripted failure is spent; a retry succeeds.
	if _, err := client.Fulfill(context.Background(), "100002"); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestFulfillWithoutCSRFCookieIsForbidden(t *testing.T) {
	fake := apitest.New()
	fake.AddOrder("100001", api.StatusFulfillmentError)
	srv := fake.Serve()
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Fulfill(context.Background(), "100001")
	var failed *api.RequestFailedError
	if !errors.As(err, &failed) || failed.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 failure, got %v", err)
	}
	if got := fake.Requests()[0].CSRFToken; got != "" {
		t.Fatalf("expected no csrf header, got %q", got)
	}
}

func TestFulfillUsesReasonPhraseFromStatusLine(t *testing.T) {
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Status:     "500 INTERNAL SERVER ERROR",
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     http.Header{},
			Request:    r,
		}, nil
	})
	client, err := api.New("http://ecommerce.test", api.WithHTTPClient(&http.Client{Transport: transport}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Fulfill(context.Background(), "100002")
	var failed *api.RequestFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *RequestFailedError, got %v", err)
	}
	if failed.Reason != "INTERNAL SERVER ERROR" {
		t.Fatalf("reason = %q", failed.Reason)
	}
}

func TestFulfillTransportErrorIsRequestFailed(t *testing.T) {
	transport := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	client, err := api.New("http://ecommerce.test", api.WithHTTPClient(&http.Client{Transport: transport}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Fulfill(context.Background(), "100003")
	var failed *api.RequestFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *RequestFailedError, got %v", err)
	}
	if failed.StatusCode != 0 || failed.Reason != "connection refused" {
		t.Fatalf("unexpected failure %+v", failed)
	}
}

func TestFulfillRejectsBodyWithoutStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"number":"100001"}`)
	}))
	t.Cleanup(srv.Close)
	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Fulfill(context.Background(), "100001")
	var failed *api.RequestFailedError
	if !errors.As(err, &failed) || failed.Reason != "invalid response" {
		t.Fatalf("expected invalid response failure, got %v", err)
	}
}

func TestFulfillHonorsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	client, err := api.New(srv.URL, api.WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Fulfill(context.Background(), "100001")
	if !errors.Is(err, api.ErrFulfillmentRequestFailed) {
		t.Fatalf("expected request failure on timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestFulfillURLEscapesOrderNumber(t *testing.T) {
	client, err := api.New("https://ecommerce.test/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got := client.FulfillURL("EDX 1/2")
	want := "https://ecommerce.test/api/v1/orders/EDX%201%2F2/fulfill/"
	if got != want {
		t.Fatalf("FulfillURL = %s, want %s", got, want)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

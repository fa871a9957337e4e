// Package apitest provides an in-memory stand-in for the ecommerce order API.
// Tests use it to script fulfillment outcomes, and the desk's --demo mode
// serves it on a loopback port.
package apitest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/kingrea/fulfillment-desk/internal/api"
)

const (
	CSRFCookie = "csrftoken"
	CSRFHeader = "X-CSRFToken"

	defaultPageSize = 20
)

// Request is one recorded call against the fake API.
type Request struct {
	Method    string
	Path      string
	CSRFToken string
}

// OrderAPI serves orders and fulfillment retries from memory.
type OrderAPI struct {
	mu        sync.Mutex
	orders    []*api.Order
	index     map[string]*api.Order
	failures  map[string]int
	requests  []Request
	csrfToken string
	pageSize  int
	latency   time.Duration
	clock     func() time.Time
}

// Option customizes the fake API.
type Option func(*OrderAPI)

// WithPageSize sets how many orders each list page carries.
func WithPageSize(n int) Option {
	return func(a *OrderAPI) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// WithLatency delays every fulfillment response.
func WithLatency(d time.Duration) Option {
	return func(a *OrderAPI) {
		if d > 0 {
			a.latency = d
		}
	}
}

// WithCSRFToken fixes the token instead of generating one.
func WithCSRFToken(token string) Option {
	return func(a *OrderAPI) {
		if token != "" {
			a.csrfToken = token
		}
	}
}

// New returns an empty fake API.
func New(opts ...Option) *OrderAPI {
	a := &OrderAPI{
		index:     map[string]*api.Order{},
		failures:  map[string]int{},
		csrfToken: randomToken(),
		pageSize:  defaultPageSize,
		clock:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// AddOrder seeds an order with the given status.
func (a *OrderAPI) AddOrder(number, status string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	order := &api.Order{
		Number:       number,
		Status:       status,
		DatePlaced:   a.clock(),
		Currency:     "USD",
		TotalExclTax: decimal.NewFromInt(int64(100 + len(a.orders))),
	}
	a.orders = append(a.orders, order)
	a.index[number] = order
}

// FailNext makes the next n fulfillment attempts for the order answer 500.
// A negative n fails every attempt.
func (a *OrderAPI) FailNext(number string, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[number] = n
}

// Order returns the current server-side state of an order.
func (a *OrderAPI) Order(number string) (api.Order, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	order, ok := a.index[number]
	if !ok {
		return api.Order{}, false
	}
	return *order, true
}

// Requests returns every recorded request in arrival order.
func (a *OrderAPI) Requests() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Request, len(a.requests))
	copy(out, a.requests)
	return out
}

// CSRFToken returns the token the API hands out and expects back.
func (a *OrderAPI) CSRFToken() string {
	return a.csrfToken
}

// Handler returns the chi router serving the order API.
func (a *OrderAPI) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.record)
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Get("/", a.handleList)
		r.Put("/{number}/fulfill/", a.handleFulfill)
	})
	return r
}

// Serve starts an httptest server. Callers must Close it.
func (a *OrderAPI) Serve() *httptest.Server {
	return httptest.NewServer(a.Handler())
}

func (a *OrderAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.requests = append(a.requests, Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			CSRFToken: r.Header.Get(CSRFHeader),
		})
		a.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (a *OrderAPI) handleList(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Value: a.csrfToken, Path: "/"})

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, `{"detail":"Invalid page."}`, http.StatusNotFound)
			return
		}
		page = n
	}

	a.mu.Lock()
	start := (page - 1) * a.pageSize
	end := start + a.pageSize
	total := len(a.orders)
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	results := make([]api.Order, 0, end-start)
	for _, order := range a.orders[start:end] {
		results = append(results, *order)
	}
	a.mu.Unlock()

	var next, previous *string
	if end < total {
		link := fmt.Sprintf("http://%s/api/v1/orders/?page=%d", r.Host, page+1)
		next = &link
	}
	if page > 1 {
		link := fmt.Sprintf("http://%s/api/v1/orders/?page=%d", r.Host, page-1)
		previous = &link
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    total,
		"next":     next,
		"previous": previous,
		"results":  results,
	})
}

func (a *OrderAPI) handleFulfill(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	cookie, err := r.Cookie(CSRFCookie)
	header := r.Header.Get(CSRFHeader)
	if err != nil || header == "" || header != cookie.Value || header != a.csrfToken {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "CSRF Failed: CSRF token missing or incorrect."})
		return
	}
	if a.latency > 0 {
		select {
		case <-time.After(a.latency):
		case <-r.Context().Done():
			return
		}
	}

	a.mu.Lock()
	order, ok := a.index[number]
	if !ok {
		a.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	if !order.CanRetryFulfillment() {
		a.mu.Unlock()
		w.WriteHeader(http.StatusNotAcceptable)
		return
	}
	if remaining := a.failures[number]; remaining != 0 {
		if remaining > 0 {
			a.failures[number] = remaining - 1
		}
		a.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	order.Status = api.StatusComplete
	snapshot := *order
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, snapshot)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func randomToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "apitest-csrf-token"
	}
	return hex.EncodeToString(buf)
}

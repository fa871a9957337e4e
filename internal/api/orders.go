package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses reported by the ecommerce service.
const (
	StatusOpen             = "Open"
	StatusFulfillmentError = "Fulfillment Error"
	StatusComplete         = "Complete"
	StatusRefunded         = "Refunded"
)

// Order is the subset of the serialized order the desk displays.
type Order struct {
	Number       string          `json:"number"`
	Status       string          `json:"status"`
	DatePlaced   time.Time       `json:"date_placed"`
	Currency     string          `json:"currency"`
	TotalExclTax decimal.Decimal `json:"total_excl_tax"`
}

// CanRetryFulfillment reports whether the order is eligible for a retry.
func (o Order) CanRetryFulfillment() bool {
	return o.Status == StatusFulfillmentError
}

// Outcome is the successful result of a fulfillment request.
type Outcome struct {
	OrderNumber string
	Status      string
}

type orderPage struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Order `json:"results"`
}

type fulfillResponse struct {
	Number string  `json:"number"`
	Status *string `json:"status"`
}

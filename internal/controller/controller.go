// Package controller binds retry-fulfillment controls in a page.Document to
// fulfillment requests and reflects each outcome back into the document.
//
// Every control moves through Enabled → Pending → (Enabled | Removed). A
// control accepts clicks only while Enabled, so at most one request per order
// is ever in flight.
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/kingrea/fulfillment-desk/internal/api"
	"github.com/kingrea/fulfillment-desk/internal/page"
)

// State is the lifecycle position of one retry control.
type State int

const (
	StateUnbound State = iota
	StateEnabled
	StatePending
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateEnabled:
		return "enabled"
	case StatePending:
		return "pending"
	case StateRemoved:
		return "removed"
	default:
		return "unbound"
	}
}

// Fulfiller performs the fulfillment request. *api.Client satisfies it.
type Fulfiller interface {
	Fulfill(ctx context.Context, orderNumber string) (api.Outcome, error)
}

// Journal receives one entry per transition, tagged with the order number.
// *logbook.Logbook satisfies it.
type Journal interface {
	OrderInfo(orderNumber, format string, args ...any)
	OrderWarn(orderNumber, format string, args ...any)
}

type nopJournal struct{}

func (nopJournal) OrderInfo(string, string, ...any) {}
func (nopJournal) OrderWarn(string, string, ...any) {}

// Result carries the outcome of one request back to the controller.
type Result struct {
	OrderNumber string
	Outcome     api.Outcome
	Err         error
}

// Request runs a fulfillment attempt started by Click. The caller decides
// where it runs; the Result must be handed back to Resolve.
type Request func(ctx context.Context) Result

// Controller owns the handler state of every retry control in a document.
type Controller struct {
	doc       *page.Document
	fulfiller Fulfiller
	journal   Journal
	states    map[string]State
	disposed  bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithJournal records transitions to j.
func WithJournal(j Journal) Option {
	return func(c *Controller) {
		if j != nil {
			c.journal = j
		}
	}
}

// Bind attaches a handler to every retry-fulfillment control in doc. The
// returned controller's Dispose detaches them again.
func Bind(doc *page.Document, f Fulfiller, opts ...Option) *Controller {
	c := &Controller{
		doc:       doc,
		fulfiller: f,
		journal:   nopJournal{},
		states:    map[string]State{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	for _, ctl := range doc.Controls(page.ActionRetryFulfillment) {
		c.states[ctl.OrderNumber] = StateEnabled
		doc.SetDisabled(ctl.OrderNumber, false)
	}
	return c
}

// Dispose detaches every handler. Later clicks and results are ignored.
func (c *Controller) Dispose() {
	c.disposed = true
	c.states = map[string]State{}
}

// Disposed reports whether Dispose has been called.
func (c *Controller) Disposed() bool {
	return c.disposed
}

// State returns the current state of the order's control.
func (c *Controller) State(orderNumber string) State {
	return c.states[orderNumber]
}

// Pending reports whether any request is in flight.
func (c *Controller) Pending() bool {
	for _, s := range c.states {
		if s == StatePending {
			return true
		}
	}
	return false
}

// Click handles activation of the order's control. When the control has a
// handler attached, it is disabled and detached before Click returns, and
// the request to run is returned with ok == true. Otherwise nothing happens.
func (c *Controller) Click(orderNumber string) (Request, bool) {
	if c.disposed || c.states[orderNumber] != StateEnabled {
		return nil, false
	}
	if _, ok := c.doc.Control(orderNumber); !ok {
		return nil, false
	}
	c.doc.SetDisabled(orderNumber, true)
	c.states[orderNumber] = StatePending
	c.journal.OrderInfo(orderNumber, "retrying fulfillment")

	f := c.fulfiller
	return func(ctx context.Context) Result {
		outcome, err := f.Fulfill(ctx, orderNumber)
		return Result{OrderNumber: orderNumber, Outcome: outcome, Err: err}
	}, true
}

// Resolve applies a finished request to the document and returns the
// notification it appended. Results for controls that are not pending are
// dropped.
func (c *Controller) Resolve(res Result) (page.Notification, bool) {
	number := res.OrderNumber
	if c.disposed || c.states[number] != StatePending {
		return page.Notification{}, false
	}
	if res.Err != nil {
		return c.fail(number, res.Err), true
	}
	return c.succeed(number, res.Outcome.Status), true
}

func (c *Controller) succeed(number, status string) page.Notification {
	c.doc.SetStatus(number, page.SanitizeText(status))
	n := c.doc.AppendNotification(
		page.SeveritySuccess,
		page.IconCheck,
		page.SanitizeText(fmt.Sprintf("Order %s has been fulfilled.", number)),
	)
	c.doc.RemoveControl(number)
	c.states[number] = StateRemoved
	c.journal.OrderInfo(number, "fulfilled (status %s)", status)
	return n
}

func (c *Controller) fail(number string, err error) page.Notification {
	reason := err.Error()
	var failed *api.RequestFailedError
	if errors.As(err, &failed) {
		reason = failed.Reason
	}
	n := c.doc.AppendNotification(
		page.SeverityError,
		page.IconWarning,
		page.SanitizeText(fmt.Sprintf("Failed to fulfill order %s: %s", number, reason)),
	)
	c.doc.SetDisabled(number, false)
	c.states[number] = StateEnabled
	c.journal.OrderWarn(number, "fulfillment failed: %s", reason)
	return n
}

// internal/page/document.go
//
// A Document is the scope the dashboard renders and the fulfillment
// controller mutates: an ordered set of order rows, the action controls
// attached to them, and the notification container.
//
// Documents are not safe for concurrent use. The bubbletea Update loop is the
// only writer.

package page

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActionRetryFulfillment marks controls that retry fulfillment of an order.
const ActionRetryFulfillment = "retry-fulfillment"

// Row is one line of the order table. Status is the row's single status cell.
type Row struct {
	OrderNumber string
	Status      string
}

// Control is an action button bound to an order row.
type Control struct {
	OrderNumber string
	Action      string
	Disabled    bool
}

// Document holds rows, controls and notifications in insertion order.
type Document struct {
	rows          []*Row
	rowIndex      map[string]*Row
	controls      map[string]*Control
	notifications []Notification
	clock         func() time.Time
}

// Option customizes a Document.
type Option func(*Document)

// WithClock allows tests to control notification timestamps.
func WithClock(clock func() time.Time) Option {
	return func(d *Document) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDocument returns an empty document.
func NewDocument(opts ...Option) *Document {
	d := &Document{
		rowIndex: map[string]*Row{},
		controls: map[string]*Control{},
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// AddRow appends a row for the order. Order numbers must be unique.
func (d *Document) AddRow(orderNumber, status string) error {
	if strings.TrimSpace(orderNumber) == "" {
		return fmt.Errorf("page: order number is required")
	}
	if _, exists := d.rowIndex[orderNumber]; exists {
		return fmt.Errorf("page: duplicate row for order %s", orderNumber)
	}
	row := &Row{OrderNumber: orderNumber, Status: status}
	d.rows = append(d.rows, row)
	d.rowIndex[orderNumber] = row
	return nil
}

// AddControl attaches an action control to an existing row.
func (d *Document) AddControl(orderNumber, action string) error {
	if _, ok := d.rowIndex[orderNumber]; !ok {
		return fmt.Errorf("page: no row for order %s", orderNumber)
	}
	if _, exists := d.controls[orderNumber]; exists {
		return fmt.Errorf("page: order %s already has a control", orderNumber)
	}
	d.controls[orderNumber] = &Control{OrderNumber: orderNumber, Action: action}
	return nil
}

// Rows returns a snapshot of all rows in table order.
func (d *Document) Rows() []Row {
	out := make([]Row, 0, len(d.rows))
	for _, row := range d.rows {
		out = append(out, *row)
	}
	return out
}

// Row looks up a row by exact order number.
func (d *Document) Row(orderNumber string) (Row, bool) {
	row, ok := d.rowIndex[orderNumber]
	if !ok {
		return Row{}, false
	}
	return *row, true
}

// SetStatus replaces the text of the row's status cell.
func (d *Document) SetStatus(orderNumber, status string) bool {
	row, ok := d.rowIndex[orderNumber]
	if !ok {
		return false
	}
	row.Status = status
	return true
}

// Control returns the control bound to the order, if one is present.
func (d *Document) Control(orderNumber string) (Control, bool) {
	ctl, ok := d.controls[orderNumber]
	if !ok {
		return Control{}, false
	}
	return *ctl, true
}

// Controls lists controls carrying the action marker, in row order.
func (d *Document) Controls(action string) []Control {
	var out []Control
	for _, row := range d.rows {
		ctl, ok := d.controls[row.OrderNumber]
		if !ok || ctl.Action != action {
			continue
		}
		out = append(out, *ctl)
	}
	return out
}

// SetDisabled flips the control's disabled flag.
func (d *Document) SetDisabled(orderNumber string, disabled bool) bool {
	ctl, ok := d.controls[orderNumber]
	if !ok {
		return false
	}
	ctl.Disabled = disabled
	return true
}

// RemoveControl drops the control from the page.
func (d *Document) RemoveControl(orderNumber string) bool {
	if _, ok := d.controls[orderNumber]; !ok {
		return false
	}
	delete(d.controls, orderNumber)
	return true
}

// AppendNotification adds a message to the end of the notification list.
func (d *Document) AppendNotification(severity Severity, icon Icon, text string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Severity:  severity,
		Icon:      icon,
		Text:      text,
		CreatedAt: d.clock(),
	}
	d.notifications = append(d.notifications, n)
	return n
}

// CarryNotifications appends notifications taken from another document
// unchanged, keeping their IDs and creation times. Notifications whose ID is
// already present are skipped.
func (d *Document) CarryNotifications(notes []Notification) {
	for _, n := range notes {
		if n.ID == "" || d.hasNotification(n.ID) {
			continue
		}
		d.notifications = append(d.notifications, n)
	}
}

func (d *Document) hasNotification(id string) bool {
	for _, n := range d.notifications {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Notifications returns the visible notifications, oldest first.
func (d *Document) Notifications() []Notification {
	out := make([]Notification, len(d.notifications))
	copy(out, d.notifications)
	return out
}

// DismissNotification removes a notification at the user's request.
func (d *Document) DismissNotification(id string) bool {
	for i, n := range d.notifications {
		if n.ID == id {
			d.notifications = append(d.notifications[:i], d.notifications[i+1:]...)
			return true
		}
	}
	return false
}

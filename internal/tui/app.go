// internal/tui/app.go
//
// This is the fulfillment desk's dashboard. It uses bubbletea, which follows
// The Elm Architecture:
//
// 1. Model: the App (document, controller, widgets)
// 2. Update: applies one message at a time
// 3. View: renders the document to a string
//
// Update is the only place the document changes. Fulfillment requests run as
// tea.Cmds and come back as fulfillResultMsg.

package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/fulfillment-desk/internal/api"
	"github.com/kingrea/fulfillment-desk/internal/config"
	"github.com/kingrea/fulfillment-desk/internal/controller"
	"github.com/kingrea/fulfillment-desk/internal/logbook"
	"github.com/kingrea/fulfillment-desk/internal/logging"
	"github.com/kingrea/fulfillment-desk/internal/page"
)

const (
	// highlightDuration is how long a new notification stays emphasized.
	highlightDuration = 1500 * time.Millisecond
	logPanelLines     = 6
)

// Backend lists orders and retries fulfillment. *api.Client satisfies it.
type Backend interface {
	controller.Fulfiller
	ListOrders(ctx context.Context) ([]api.Order, error)
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithBackend replaces the API client built from config.
func WithBackend(b Backend) AppOption {
	return func(a *App) {
		if b != nil {
			a.backend = b
		}
	}
}

// WithLogger routes HTTP diagnostics from the default client to l.
func WithLogger(l *logging.Logger) AppOption {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithAPIURL overrides the configured API root for this session.
func WithAPIURL(raw string) AppOption {
	return func(a *App) {
		a.apiURL = strings.TrimSpace(raw)
	}
}

type focusArea int

const (
	focusOrders focusArea = iota
	focusNotifications
)

type ordersLoadedMsg struct {
	orders []api.Order
	err    error
}

type fulfillResultMsg struct {
	ctrl   *controller.Controller
	result controller.Result
}

type highlightDoneMsg struct {
	id string
}

// App is the main application model.
type App struct {
	config  *config.Config
	backend Backend
	apiURL  string
	logger  *logging.Logger
	logbook *logbook.Logbook

	ctx    context.Context
	cancel context.CancelFunc

	doc    *page.Document
	ctrl   *controller.Controller
	orders map[string]api.Order

	table   table.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	focus         focusArea
	noteSelection int
	fresh         map[string]bool
	highlight     time.Duration
	loading       bool
	reloadQueued  bool
	loadErr       error
	statusMsg     string
	lastLogStatus string
	width, height int
}

// NewApp creates the dashboard for the desk rooted at workDir.
func NewApp(workDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(workDir)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		doc:     page.NewDocument(),
		orders:  map[string]api.Order{},
		table:   newOrderTable(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
		keys:    defaultKeyMap(),
		fresh:   map[string]bool{},

		highlight: highlightDuration,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.apiURL != "" {
		if err := cfg.SetBaseURL(app.apiURL); err != nil {
			cancel()
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	app.resizeTable()
	if app.backend == nil {
		var clientOpts []api.Option
		if app.logger != nil {
			clientOpts = append(clientOpts, api.WithLogger(app.logger))
		}
		client, err := api.NewFromConfig(cfg, clientOpts...)
		if err != nil {
			cancel()
			return nil, err
		}
		app.backend = client
	}
	lb, err := logbook.New(filepath.Join(cfg.LogsDir(), "journey.log"))
	if err == nil {
		app.logbook = lb
		lb.Info("Session opened · API %s", cfg.BaseURL())
	}
	return app, nil
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.loadOrders()
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.resizeTable()
		return a, nil

	case ordersLoadedMsg:
		return a, a.handleOrdersLoaded(msg)

	case fulfillResultMsg:
		return a, a.handleFulfillResult(msg)

	case highlightDoneMsg:
		delete(a.fresh, msg.id)
		return a, nil

	case spinner.TickMsg:
		if a.ctrl == nil || !a.ctrl.Pending() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		a.syncTable()
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		a.logInfo("Session closed")
		a.cancel()
		return a, tea.Quit
	case key.Matches(msg, a.keys.Reload):
		return a, a.requestReload()
	case key.Matches(msg, a.keys.Focus):
		a.toggleFocus()
		return a, nil
	}

	if a.focus == focusNotifications {
		switch {
		case key.Matches(msg, a.keys.Up):
			if a.noteSelection > 0 {
				a.noteSelection--
			}
		case key.Matches(msg, a.keys.Down):
			if a.noteSelection < len(a.doc.Notifications())-1 {
				a.noteSelection++
			}
		case key.Matches(msg, a.keys.Dismiss):
			a.dismissSelected()
		}
		return a, nil
	}

	if key.Matches(msg, a.keys.Retry) {
		return a, a.retrySelected()
	}
	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return a, cmd
}

func (a *App) toggleFocus() {
	if a.focus == focusOrders && len(a.doc.Notifications()) > 0 {
		a.focus = focusNotifications
		a.table.Blur()
		a.clampNoteSelection()
		return
	}
	a.focus = focusOrders
	a.table.Focus()
}

// requestReload starts a reload, or queues it while any retry is in flight.
// Rebinding mid-request would offer the same order a second PUT.
func (a *App) requestReload() tea.Cmd {
	if a.ctrl != nil && a.ctrl.Pending() {
		a.reloadQueued = true
		a.statusMsg = "Reload queued until pending retries finish..."
		return nil
	}
	a.statusMsg = "Reloading orders..."
	return a.loadOrders()
}

func (a *App) loadOrders() tea.Cmd {
	a.loading = true
	backend := a.backend
	ctx := a.ctx
	return func() tea.Msg {
		orders, err := backend.ListOrders(ctx)
		return ordersLoadedMsg{orders: orders, err: err}
	}
}

// handleOrdersLoaded rebuilds the document and rebinds the controller. A list
// that arrives while a retry is pending may predate that retry, so it is
// discarded and fetched again once the controller is idle.
func (a *App) handleOrdersLoaded(msg ordersLoadedMsg) tea.Cmd {
	a.loading = false
	if msg.err != nil {
		a.loadErr = msg.err
		a.statusMsg = "Could not load orders"
		a.logError("Order load failed: %v", msg.err)
		return nil
	}
	if a.ctrl != nil && a.ctrl.Pending() {
		a.reloadQueued = true
		return nil
	}
	a.loadErr = nil
	a.reloadQueued = false
	if a.ctrl != nil {
		a.ctrl.Dispose()
	}
	notes := a.doc.Notifications()
	doc := page.NewDocument()
	orders := make(map[string]api.Order, len(msg.orders))
	retryable := 0
	for _, order := range msg.orders {
		if err := doc.AddRow(order.Number, order.Status); err != nil {
			a.logWarn("Skipping order: %v", err)
			continue
		}
		orders[order.Number] = order
		if order.CanRetryFulfillment() {
			_ = doc.AddControl(order.Number, page.ActionRetryFulfillment)
			retryable++
		}
	}
	doc.CarryNotifications(notes)
	a.doc = doc
	a.orders = orders
	var opts []controller.Option
	if a.logbook != nil {
		opts = append(opts, controller.WithJournal(a.logbook))
	}
	a.ctrl = controller.Bind(doc, a.backend, opts...)
	a.syncTable()
	a.clampNoteSelection()
	a.statusMsg = fmt.Sprintf("%d order(s) loaded · %d awaiting fulfillment retry", len(orders), retryable)
	a.logProgress(a.statusMsg)
	return nil
}

// retrySelected activates the retry control of the highlighted row.
func (a *App) retrySelected() tea.Cmd {
	number := a.selectedOrder()
	if number == "" || a.ctrl == nil {
		return nil
	}
	req, ok := a.ctrl.Click(number)
	if !ok {
		return nil
	}
	a.statusMsg = fmt.Sprintf("Retrying fulfillment of order %s...", number)
	a.syncTable()
	ctrl := a.ctrl
	ctx := a.ctx
	run := func() tea.Msg {
		return fulfillResultMsg{ctrl: ctrl, result: req(ctx)}
	}
	return tea.Batch(run, a.spinner.Tick)
}

func (a *App) handleFulfillResult(msg fulfillResultMsg) tea.Cmd {
	if msg.ctrl == nil {
		return nil
	}
	note, ok := msg.ctrl.Resolve(msg.result)
	if !ok || msg.ctrl != a.ctrl {
		return nil
	}
	if msg.result.Err != nil {
		a.statusMsg = fmt.Sprintf("Order %s can be retried", msg.result.OrderNumber)
	} else {
		a.statusMsg = fmt.Sprintf("Order %s fulfilled", msg.result.OrderNumber)
	}
	a.syncTable()
	a.fresh[note.ID] = true
	id := note.ID
	cmds := []tea.Cmd{tea.Tick(a.highlight, func(time.Time) tea.Msg {
		return highlightDoneMsg{id: id}
	})}
	if a.reloadQueued && !a.ctrl.Pending() {
		a.reloadQueued = false
		a.statusMsg = "Reloading orders..."
		cmds = append(cmds, a.loadOrders())
	}
	return tea.Batch(cmds...)
}

func (a *App) dismissSelected() {
	notes := a.doc.Notifications()
	if len(notes) == 0 {
		a.focus = focusOrders
		a.table.Focus()
		return
	}
	a.clampNoteSelection()
	target := notes[a.noteSelection]
	a.doc.DismissNotification(target.ID)
	delete(a.fresh, target.ID)
	if len(a.doc.Notifications()) == 0 {
		a.focus = focusOrders
		a.table.Focus()
	}
	a.clampNoteSelection()
}

func (a *App) clampNoteSelection() {
	count := len(a.doc.Notifications())
	if a.noteSelection >= count {
		a.noteSelection = count - 1
	}
	if a.noteSelection < 0 {
		a.noteSelection = 0
	}
}

func (a *App) selectedOrder() string {
	rows := a.doc.Rows()
	idx := a.table.Cursor()
	if idx < 0 || idx >= len(rows) {
		return ""
	}
	return rows[idx].OrderNumber
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

func (a *App) logProgress(status string) {
	status = strings.TrimSpace(status)
	if status == "" || status == a.lastLogStatus {
		return
	}
	a.lastLogStatus = status
	a.logInfo(status)
}

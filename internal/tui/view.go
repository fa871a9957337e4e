package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/fulfillment-desk/internal/controller"
	"github.com/kingrea/fulfillment-desk/internal/page"
)

const (
	retryLabel   = "[ Retry ]"
	pendingLabel = "retrying"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	alertSuccessStyle = alertStyle("#4CAF50")
	alertErrorStyle   = alertStyle("#FF6B6B")
)

// alertStyle draws a notification with a colored rule on its left edge.
func alertStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(color)).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(lipgloss.Color(color)).
		PaddingLeft(1)
}

func newOrderTable() table.Model {
	t := table.New(
		table.WithColumns(orderColumns(100)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#5B8DEF")).
		Bold(false)
	t.SetStyles(styles)
	return t
}

func orderColumns(width int) []table.Column {
	fixed := 12 + 12 + 20 + 16
	number := max(14, width-fixed-12)
	return []table.Column{
		{Title: "Order", Width: number},
		{Title: "Placed", Width: 12},
		{Title: "Total", Width: 12},
		{Title: "Status", Width: 20},
		{Title: "Action", Width: 16},
	}
}

func (a *App) resizeTable() {
	width := a.width
	if width <= 0 {
		width = 100
	}
	a.table.SetColumns(orderColumns(width - 6))
	a.table.SetWidth(max(40, width-4))
	a.table.SetHeight(max(5, a.height/2-4))
}

// syncTable renders document rows into the table widget.
func (a *App) syncTable() {
	docRows := a.doc.Rows()
	rows := make([]table.Row, 0, len(docRows))
	for _, row := range docRows {
		order := a.orders[row.OrderNumber]
		placed := ""
		if !order.DatePlaced.IsZero() {
			placed = order.DatePlaced.Local().Format("2006-01-02")
		}
		total := ""
		if order.Currency != "" {
			total = fmt.Sprintf("%s %s", order.TotalExclTax.StringFixed(2), order.Currency)
		}
		rows = append(rows, table.Row{
			row.OrderNumber,
			placed,
			total,
			row.Status,
			a.actionCell(row.OrderNumber),
		})
	}
	a.table.SetRows(rows)
	if len(rows) > 0 && a.table.Cursor() >= len(rows) {
		a.table.SetCursor(len(rows) - 1)
	}
}

func (a *App) actionCell(orderNumber string) string {
	if _, ok := a.doc.Control(orderNumber); !ok || a.ctrl == nil {
		return ""
	}
	switch a.ctrl.State(orderNumber) {
	case controller.StateEnabled:
		return retryLabel
	case controller.StatePending:
		return a.spinner.View() + " " + pendingLabel
	default:
		return ""
	}
}

// View renders the current state to a string.
func (a *App) View() string {
	sections := []string{headerStyle.Render("⬡ FULFILLMENT DESK")}
	sections = append(sections, panelStyle.Render(a.renderOrders()))
	if notes := a.renderNotifications(); notes != "" {
		sections = append(sections, panelStyle.Render(notes))
	}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, mutedStyle.Render(a.statusMsg))
	sections = append(sections, a.help.View(a.keys))
	return strings.Join(sections, "\n")
}

func (a *App) renderOrders() string {
	title := titleStyle.Render(fmt.Sprintf("Orders (%d)", len(a.doc.Rows())))
	switch {
	case a.loadErr != nil:
		return lipgloss.JoinVertical(lipgloss.Left, title, errorStyle.Render("⚠ "+page.SanitizeText(a.loadErr.Error())))
	case a.loading && len(a.doc.Rows()) == 0:
		return lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("Loading orders..."))
	case len(a.doc.Rows()) == 0:
		return lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("No orders."))
	}
	a.syncTable()
	parts := []string{title, a.table.View()}
	if last := a.selectedHistory(); last != "" {
		parts = append(parts, mutedStyle.Render("last: "+last))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// selectedHistory returns the most recent journey entry for the highlighted
// order, if any.
func (a *App) selectedHistory() string {
	if a.logbook == nil {
		return ""
	}
	history := a.logbook.OrderHistory(a.selectedOrder(), 1)
	if len(history) == 0 {
		return ""
	}
	return history[0]
}

func (a *App) renderNotifications() string {
	notes := a.doc.Notifications()
	if len(notes) == 0 {
		return ""
	}
	lines := []string{titleStyle.Render(fmt.Sprintf("Alerts (%d)", len(notes)))}
	for i, n := range notes {
		selected := a.focus == focusNotifications && i == a.noteSelection
		lines = append(lines, a.renderNotification(n, selected))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderNotification(n page.Notification, selected bool) string {
	style := alertSuccessStyle
	if n.Severity == page.SeverityError {
		style = alertErrorStyle
	}
	if a.fresh[n.ID] {
		style = style.Bold(true)
	}
	if selected {
		style = style.Reverse(true)
	}
	text := fmt.Sprintf("%s %s  %s", n.Icon.Glyph(), n.Text, mutedStyle.Render("✕"))
	return style.Render(text)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := titleStyle.Render(fmt.Sprintf("LOG · %s (%d)", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return panelStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}

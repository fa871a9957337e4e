package page

import (
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Icon names the glyph shown beside a notification.
type Icon string

const (
	IconCheck   Icon = "check"
	IconWarning Icon = "warning"
)

// Glyph returns the terminal symbol for the icon.
func (i Icon) Glyph() string {
	switch i {
	case IconCheck:
		return "✔"
	case IconWarning:
		return "⚠"
	default:
		return "•"
	}
}

// Notification is a dismissible message shown to the operator.
type Notification struct {
	ID        string
	Severity  Severity
	Icon      Icon
	Text      string
	CreatedAt time.Time
}

// SanitizeText strips terminal escape sequences and control characters so
// that server-provided text cannot rewrite the screen.
func SanitizeText(text string) string {
	stripped := ansi.Strip(text)
	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

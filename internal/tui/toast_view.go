package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/erpsync/internal/core/notify"
	"github.com/colonyops/erpsync/internal/core/styles"
)

const toastWidth = 50

// renderToasts stacks records newest first. Hidden records that are still
// inside their removal grace are drawn muted.
func renderToasts(recs []notify.Record) string {
	if len(recs) == 0 {
		return ""
	}

	rendered := make([]string, 0, len(recs))
	for _, r := range recs {
		rendered = append(rendered, renderToast(r))
	}
	return strings.Join(rendered, "\n")
}

func renderToast(r notify.Record) string {
	var icon string
	var style lipgloss.Style

	switch r.Severity {
	case notify.SeverityError:
		icon = styles.IconNotifyError
		style = styles.ToastErrorStyle
	case notify.SeverityWarning:
		icon = styles.IconNotifyWarning
		style = styles.ToastWarningStyle
	case notify.SeveritySuccess:
		icon = styles.IconNotifySuccess
		style = styles.ToastSuccessStyle
	default:
		icon = styles.IconNotifyInfo
		style = styles.ToastInfoStyle
	}
	if !r.Visible {
		style = styles.ToastHidingStyle
	}

	head, body := r.Title, r.Message
	if head == "" {
		head, body = body, ""
	}

	var b strings.Builder
	b.WriteString(icon + " " + lipgloss.NewStyle().Bold(true).Render(head))
	if body != "" {
		b.WriteString("\n" + body)
	}
	if r.Undoable && r.Visible {
		b.WriteString("\n" + styles.MutedStyle.Render(styles.IconUndo+" u to undo"))
	}
	return style.Width(toastWidth).Render(b.String())
}

// latestUndoable returns the newest visible record that still offers undo.
func latestUndoable(recs []notify.Record) (notify.Record, bool) {
	for _, r := range recs {
		if r.Visible && r.Undoable {
			return r, true
		}
	}
	return notify.Record{}, false
}

// overlay places the toast stack under body, aligned right.
func overlay(body, toasts string, width int) string {
	if toasts == "" {
		return body
	}
	if width <= 0 {
		return lipgloss.JoinVertical(lipgloss.Left, body, toasts)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, lipgloss.PlaceHorizontal(width, lipgloss.Right, toasts))
}

// Package notify is a bounded, most-recent-first queue of user-facing event
// records with auto-hide timers and undo callbacks.
package notify

import "time"

// Severity is the display level of a record.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity maps a string to a Severity, defaulting to info.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeveritySuccess, SeverityWarning, SeverityError:
		return Severity(s)
	default:
		return SeverityInfo
	}
}

// Record is one notification. ID, Timestamp and Visible are assigned by the
// queue.
type Record struct {
	ID        string
	Timestamp time.Time
	Type      string // domain tag, e.g. "lead_scored"
	Severity  Severity
	Title     string
	Message   string
	Details   string
	Visible   bool
	Undoable  bool
	Undo      func()

	// Sticky records are never hidden automatically.
	Sticky bool
}

// UndoneTitle is the title of the confirmation pushed after an undo.
const UndoneTitle = "Action Undone"

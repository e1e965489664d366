package styles

// Tip: To find icons use https://github.com/loichyan/nerdfix

var (
	IconNotifyInfo    = "" // nf-fa-info_circle
	IconNotifySuccess = "" // nf-fa-check
	IconNotifyWarning = "" // nf-fa-warning
	IconNotifyError   = "" // nf-fa-times_circle
	IconUndo          = "" // nf-fa-undo
	IconSync          = "" // nf-fa-refresh
)

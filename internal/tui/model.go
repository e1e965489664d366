package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/notify"
	"github.com/colonyops/erpsync/internal/core/query"
	"github.com/colonyops/erpsync/internal/core/styles"
	"github.com/colonyops/erpsync/internal/core/transport"
	"github.com/colonyops/erpsync/internal/tui/jsoncolor"
)

const (
	maxColumns   = 6
	maxCellWidth = 30
	minCellWidth = 4
	// header, blank line, filter, confirm and help lines around the table
	chromeHeight = 6
)

// Remover deletes a record and reports the outcome to the notification queue.
type Remover interface {
	Remove(ctx context.Context, key, id string) (cache.Record, error)
}

// Options wires a Model to a live view.
type Options struct {
	Live    *query.Live
	Queue   *notify.Queue
	Actions Remover
	IDField string
}

type actionDoneMsg struct{ err error }

// Model is the watch view: a table over one endpoint, kept current by the
// cache poller, with the notification queue drawn as toasts.
type Model struct {
	ctx    context.Context
	opts   Options
	key    string
	view   *query.Filtered
	buf    *UpdateBuffer
	unsubs []func()

	keys    keyMap
	help    help.Model
	table   table.Model
	spinner spinner.Model
	filter  textinput.Model

	state  query.FilteredState
	toasts []notify.Record

	filtering  bool
	showDetail bool
	rawDetail  bool
	confirmID  string
	width      int
	height     int
}

// New builds the watch model. Call Close once the program exits.
func New(ctx context.Context, opts Options) Model {
	if opts.IDField == "" {
		opts.IDField = cache.DefaultIdentityField
	}

	t := table.New(table.WithFocused(true), table.WithHeight(10))
	ts := table.DefaultStyles()
	ts.Header = styles.TableHeaderStyle
	ts.Selected = styles.TableSelectedStyle
	t.SetStyles(ts)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = styles.StatusStyle

	fi := textinput.New()
	fi.Prompt = "/ "
	fi.Placeholder = "filter"

	m := Model{
		ctx:     ctx,
		opts:    opts,
		key:     opts.Live.Key(),
		view:    query.NewFiltered(opts.Live, nil),
		buf:     NewUpdateBuffer(),
		keys:    defaultKeyMap(),
		help:    help.New(),
		table:   t,
		spinner: sp,
		filter:  fi,
	}

	m.unsubs = append(m.unsubs,
		m.view.Subscribe(m.buf.PushState),
		opts.Queue.Subscribe(m.buf.PushToasts),
	)

	m.state = m.view.State()
	m.applyState()
	m.toasts = opts.Queue.List()
	return m
}

// Close detaches the model from the view and the queue.
func (m Model) Close() {
	for _, fn := range m.unsubs {
		fn()
	}
	m.view.Close()
	m.buf.Close()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.buf.Wait())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(max(m.height-chromeHeight, 3))
		return m, nil

	case drainMsg:
		p := m.buf.Drain()
		if p.state != nil {
			m.state = *p.state
			m.applyState()
		}
		if p.queued {
			m.toasts = p.toasts
		}
		return m, m.buf.Wait()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionDoneMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		return m.handleFilterKey(msg)
	}

	if m.confirmID != "" {
		id := m.confirmID
		m.confirmID = ""
		if msg.String() == "y" {
			return m, m.removeCmd(id)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.showDetail = false
		return m, nil
	case key.Matches(msg, m.keys.Detail):
		if _, ok := m.selectedRecord(); ok {
			m.showDetail = !m.showDetail
			m.rawDetail = false
		}
		return m, nil
	case key.Matches(msg, m.keys.JSON):
		if _, ok := m.selectedRecord(); ok {
			m.rawDetail = !m.showDetail || !m.rawDetail
			m.showDetail = true
		}
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		m.opts.Live.Refresh()
		return m, nil
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		m.showDetail = false
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.Delete):
		if rec, ok := m.selectedRecord(); ok && m.opts.Actions != nil {
			m.confirmID = rec.ID(m.opts.IDField)
		}
		return m, nil
	case key.Matches(msg, m.keys.Undo):
		if rec, ok := latestUndoable(m.toasts); ok {
			return m, m.undoCmd(rec.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.Dismiss):
		m.opts.Queue.ClearAll()
		return m, nil
	}

	if m.showDetail {
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.setFilter("")
		return m, nil
	case msg.Type == tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.setFilter(m.filter.Value())
	return m, cmd
}

// setFilter narrows the view and applies the result right away; the same
// state also arrives through the buffer and is then a no-op.
func (m *Model) setFilter(v string) {
	m.view.SetFilter(query.FilterQuery, v)
	m.state = m.view.State()
	m.applyState()
}

func (m Model) removeCmd(id string) tea.Cmd {
	actions, ctx, endpoint := m.opts.Actions, m.ctx, m.key
	return func() tea.Msg {
		_, err := actions.Remove(ctx, endpoint, id)
		return actionDoneMsg{err: err}
	}
}

func (m Model) undoCmd(id string) tea.Cmd {
	q := m.opts.Queue
	return func() tea.Msg {
		q.Undo(id, nil)
		return actionDoneMsg{}
	}
}

func (m Model) selectedRecord() (cache.Record, bool) {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return nil, false
	}
	for _, r := range m.state.Items {
		if r.ID(m.opts.IDField) == row[0] {
			return r, true
		}
	}
	return nil, false
}

func (m *Model) applyState() {
	recs := m.state.Items
	cols := cache.Columns(recs, m.opts.IDField, maxColumns)

	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		row := make(table.Row, len(cols))
		row[0] = r.ID(m.opts.IDField)
		for j, c := range cols[1:] {
			row[j+1] = ansi.Truncate(r.String(c), maxCellWidth, "…")
		}
		rows[i] = row
	}

	// Rows must never be wider than the column set while either changes.
	m.table.SetRows(nil)
	m.table.SetColumns(tableColumns(cols, rows))
	m.table.SetRows(rows)

	if n := len(rows); m.table.Cursor() >= n {
		m.table.SetCursor(max(n-1, 0))
	}
	if len(rows) == 0 {
		m.showDetail = false
	}
}

func tableColumns(cols []string, rows []table.Row) []table.Column {
	out := make([]table.Column, len(cols))
	for i, c := range cols {
		w := lipgloss.Width(c)
		for _, r := range rows {
			w = max(w, lipgloss.Width(r[i]))
		}
		out[i] = table.Column{Title: c, Width: min(max(w, minCellWidth), maxCellWidth)}
	}
	return out
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")

	if rec, ok := m.selectedRecord(); ok && m.showDetail {
		title := fmt.Sprintf("%s #%s", m.key, rec.ID(m.opts.IDField))
		body := renderDetail(title, rec, max(m.width-4, 0))
		if m.rawDetail {
			body = styles.TitleStyle.Render(title) + "\n\n" + jsoncolor.Value(rec)
		}
		b.WriteString(styles.DetailStyle.Render(body))
	} else {
		b.WriteString(m.table.View())
	}

	if m.filtering || m.filter.Value() != "" {
		b.WriteString("\n" + m.filter.View())
	}
	if m.confirmID != "" {
		b.WriteString("\n" + styles.ErrorStyle.Render(fmt.Sprintf("Delete #%s? (y/N)", m.confirmID)))
	}
	b.WriteString("\n" + styles.HelpStyle.Render(m.help.View(m.keys)))

	return overlay(b.String(), renderToasts(m.toasts), m.width)
}

func (m Model) header() string {
	title := styles.TitleStyle.Render(styles.IconSync + " " + m.key)

	var status string
	switch {
	case m.state.Loading:
		status = m.spinner.View() + " loading"
	case m.state.Err != nil:
		status = styles.ErrorStyle.Render(transport.Message(m.state.Err))
	default:
		status = styles.MutedStyle.Render(fmt.Sprintf("%d of %d records", len(m.state.Items), m.state.Total))
	}
	return title + "  " + status
}

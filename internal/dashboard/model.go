// Package dashboard is the interactive terminal front end: summary metrics,
// charts, member search, and an editable grid of one member's publications.
//
// The Model owns the current Table and passes it explicitly to the record
// operations; after a save it reloads the file and re-renders from the result.
package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/matsen/pubreview/internal/chart"
	"github.com/matsen/pubreview/internal/index"
	"github.com/matsen/pubreview/internal/records"
)

// focus is the part of the dashboard receiving keys.
type focus int

const (
	focusMembers focus = iota
	focusSearch
	focusGrid
	focusEditor
	focusBrowse
)

const (
	memberListHeight = 8
	gridHeight       = 10
	chartWidth       = 24
	chartRows        = 8
	minColumnWidth   = 8
	maxColumnWidth   = 40
)

// DefaultColumns are offered when the table has no publications at all.
var DefaultColumns = []string{records.FieldTitle, records.FieldYear, records.FieldLanguage}

// savedMsg reports the outcome of a save: the reloaded table, or an error.
// reloadErr is set when the save landed but reading it back failed; table
// then holds what was written.
type savedMsg struct {
	table     records.Table
	hash      string
	err       error
	reloadErr error
}

// fileChangedMsg is sent when another program changes the record file.
type fileChangedMsg struct{}

// reloadedMsg carries the table reloaded after an outside change.
type reloadedMsg struct {
	table records.Table
	hash  string
	err   error
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	path   string
	opts   []records.Option
	logger *zap.Logger

	table   records.Table
	hash    string // content hash of the file the table was loaded from
	changes <-chan struct{}
	members []string // search results
	cursor  int      // index into members

	selected string
	pubs     []records.Publication // working copy of selected's rows
	columns  []string
	col      int
	dirty    bool
	saving   bool
	edits    int // bumped on every change to pubs
	saved    int // edits covered by the save in flight

	search textinput.Model
	editor textinput.Model
	grid   table.Model
	all    table.Model // read-only view of every row
	focus  focus

	status    string
	statusErr bool
	width     int
	styles    Styles
}

// New creates a dashboard over t, saving to path with opts.
func New(t records.Table, path string, logger *zap.Logger, opts ...records.Option) Model {
	if logger == nil {
		logger = zap.NewNop()
	}

	si := textinput.New()
	si.Placeholder = "Search for a member..."
	si.Prompt = "Search: "
	si.CharLimit = 80
	si.Width = 40

	ei := textinput.New()
	ei.Prompt = "Edit: "
	ei.CharLimit = 2000
	ei.Width = 60

	// An empty hash only means the first outside change always reloads.
	hash, _ := index.ComputeFileHash(path)

	styles := DefaultStyles()
	m := Model{
		hash:   hash,
		path:   path,
		opts:   append([]records.Option{records.WithLogger(logger)}, opts...),
		logger: logger,
		table:  t,
		search: si,
		editor: ei,
		grid: table.New(
			table.WithFocused(false),
			table.WithHeight(gridHeight),
			table.WithStyles(styles.Grid),
		),
		all: table.New(
			table.WithFocused(false),
			table.WithHeight(gridHeight),
			table.WithStyles(styles.Grid),
		),
		width:  100,
		styles: styles,
	}
	m.applySearch()
	return m
}

// WithChanges returns a copy of m that reloads the file whenever changes
// receives, unless there are unsaved edits.
func (m Model) WithChanges(changes <-chan struct{}) Model {
	m.changes = changes
	return m
}

// Table returns the current table.
func (m Model) Table() records.Table {
	return m.table
}

// Selected returns the selected member, or "".
func (m Model) Selected() string {
	return m.selected
}

// Members returns the members matching the current search.
func (m Model) Members() []string {
	return append([]string(nil), m.members...)
}

// Publications returns the working copy of the selected member's rows.
func (m Model) Publications() []records.Publication {
	out := make([]records.Publication, len(m.pubs))
	for i, p := range m.pubs {
		out[i] = p.Clone()
	}
	return out
}

// Status returns the status line text and whether it reports an error.
func (m Model) Status() (string, bool) {
	return m.status, m.statusErr
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

// waitForChange blocks until the next outside change to the file.
func (m Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return fileChangedMsg{}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.refreshGrid()
		return m, nil

	case savedMsg:
		return m.handleSaved(msg), nil

	case fileChangedMsg:
		if m.saving {
			return m, m.waitForChange()
		}
		if m.dirty {
			m.setStatus("The record file changed on disk. Saving will overwrite it.", true)
			return m, m.waitForChange()
		}
		return m, tea.Batch(m.reloadCmd(), m.waitForChange())

	case reloadedMsg:
		return m.handleReloaded(msg), nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.focus {
		case focusSearch:
			return m.updateSearch(msg)
		case focusEditor:
			return m.updateEditor(msg)
		case focusGrid:
			return m.updateGrid(msg)
		case focusBrowse:
			return m.updateBrowse(msg)
		default:
			return m.updateMembers(msg)
		}
	}
	return m, nil
}

func (m Model) updateMembers(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.focus = focusSearch
		cmd := m.search.Focus()
		return m, cmd
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.members)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.members) > 0 {
			m.selectMember(m.members[m.cursor])
		}
	case "tab":
		if m.selected != "" {
			m.focusGrid()
		}
	case "t":
		m.refreshAll()
		m.focus = focusBrowse
		m.all.Focus()
	case "s":
		return m.startSave()
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.search.Blur()
		m.focus = focusMembers
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	// Live filtering on each keystroke.
	m.applySearch()
	return m, cmd
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "tab":
		m.grid.Blur()
		m.focus = focusMembers
		return m, nil
	case "/":
		m.grid.Blur()
		m.focus = focusSearch
		cmd := m.search.Focus()
		return m, cmd
	case "left", "h":
		if m.col > 0 {
			m.col--
			m.refreshGrid()
		}
		return m, nil
	case "right", "l":
		if m.col < len(m.columns)-1 {
			m.col++
			m.refreshGrid()
		}
		return m, nil
	case "e", "enter":
		if len(m.pubs) == 0 || len(m.columns) == 0 {
			return m, nil
		}
		row := m.grid.Cursor()
		m.editor.SetValue(m.pubs[row].Text(m.columns[m.col]))
		m.editor.CursorEnd()
		m.focus = focusEditor
		cmd := m.editor.Focus()
		return m, cmd
	case "a":
		m.addRow()
		return m, nil
	case "d":
		m.deleteRow()
		return m, nil
	case "s":
		return m.startSave()
	}

	var cmd tea.Cmd
	m.grid, cmd = m.grid.Update(msg)
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "t":
		m.all.Blur()
		m.focus = focusMembers
		return m, nil
	case "enter":
		rows := m.table.Rows()
		if c := m.all.Cursor(); c >= 0 && c < len(rows) {
			m.all.Blur()
			m.selectMember(rows[c].MemberID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.all, cmd = m.all.Update(msg)
	return m, cmd
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		row := m.grid.Cursor()
		if row >= 0 && row < len(m.pubs) {
			m.pubs[row].SetText(m.columns[m.col], m.editor.Value())
			m.markDirty()
			m.setStatus("Unsaved changes. Press s to save.", false)
		}
		m.editor.Blur()
		m.focus = focusGrid
		m.refreshGrid()
		return m, nil
	case "esc":
		m.editor.Blur()
		m.focus = focusGrid
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

// applySearch recomputes the member list from the search box.
func (m *Model) applySearch() {
	m.members = records.SearchMembers(records.Members(m.table), m.search.Value())
	if m.cursor >= len(m.members) {
		m.cursor = max(len(m.members)-1, 0)
	}
}

func (m *Model) selectMember(member string) {
	if m.dirty && member != m.selected {
		m.setStatus(fmt.Sprintf("Discarded unsaved edits for %s.", m.selected), false)
	} else {
		m.status = ""
	}
	m.selected = member
	m.pubs = records.Filter(m.table, member)
	m.dirty = false
	m.columns = m.columnsFor()
	m.col = 0
	m.grid.SetCursor(0)
	m.refreshGrid()
	m.focusGrid()
}

func (m *Model) focusGrid() {
	m.focus = focusGrid
	m.grid.Focus()
}

// columnsFor returns the selected member's fields, falling back to the
// whole table's fields and then DefaultColumns.
func (m *Model) columnsFor() []string {
	seen := make(map[string]bool)
	var cols []string
	for _, p := range m.pubs {
		for _, k := range p.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	if len(cols) == 0 {
		cols = m.table.Columns()
	}
	if len(cols) == 0 {
		cols = append([]string(nil), DefaultColumns...)
	}
	return cols
}

func (m *Model) addRow() {
	if m.selected == "" {
		return
	}
	var p records.Publication
	for _, c := range m.columns {
		p.Set(c, nil)
	}
	m.pubs = append(m.pubs, p)
	m.markDirty()
	m.refreshGrid()
	m.grid.SetCursor(len(m.pubs) - 1)
	m.setStatus("Added a row. Press e to edit it.", false)
}

func (m *Model) deleteRow() {
	row := m.grid.Cursor()
	if row < 0 || row >= len(m.pubs) {
		return
	}
	m.pubs = append(m.pubs[:row:row], m.pubs[row+1:]...)
	m.markDirty()
	m.refreshGrid()
	if row >= len(m.pubs) && row > 0 {
		m.grid.SetCursor(row - 1)
	}
	m.setStatus("Deleted a row. Press s to save.", false)
}

func (m *Model) markDirty() {
	m.dirty = true
	m.edits++
}

// startSave begins a save unless one is already running.
func (m Model) startSave() (tea.Model, tea.Cmd) {
	if m.saving {
		m.setStatus("Save already in progress.", false)
		return m, nil
	}
	m.saving = true
	m.saved = m.edits
	return m, m.saveCmd()
}

// saveCmd replaces the selected member's rows, saves the table, and reloads
// the file so the view reflects what is on disk.
func (m Model) saveCmd() tea.Cmd {
	t := m.table
	if m.selected != "" {
		t = records.Replace(t, m.selected, m.pubs)
	}
	path, opts, logger := m.path, m.opts, m.logger
	return func() tea.Msg {
		if err := records.Save(t, path, opts...); err != nil {
			logger.Error("save failed", zap.String("path", path), zap.Error(err))
			return savedMsg{err: err}
		}
		hash, _ := index.ComputeFileHash(path)
		reloaded, err := records.Load(path, opts...)
		if err != nil {
			logger.Error("reload after save failed", zap.String("path", path), zap.Error(err))
			return savedMsg{table: t, hash: hash, reloadErr: err}
		}
		logger.Info("saved changes", zap.String("path", path), zap.Int("rows", reloaded.Len()))
		return savedMsg{table: reloaded, hash: hash}
	}
}

// reloadCmd reloads the file if its contents differ from what is shown.
// Our own saves also fire change events and are skipped by the hash check.
func (m Model) reloadCmd() tea.Cmd {
	path, opts, logger, current := m.path, m.opts, m.logger, m.hash
	return func() tea.Msg {
		hash, err := index.ComputeFileHash(path)
		if err != nil {
			return reloadedMsg{err: err}
		}
		if hash == current {
			return nil
		}
		t, err := records.Load(path, opts...)
		if err != nil {
			logger.Warn("reload after outside change failed", zap.String("path", path), zap.Error(err))
			return reloadedMsg{err: err}
		}
		logger.Info("reloaded after outside change", zap.String("path", path), zap.Int("rows", t.Len()))
		return reloadedMsg{table: t, hash: hash}
	}
}

func (m Model) handleSaved(msg savedMsg) Model {
	m.saving = false
	if msg.err != nil {
		// The in-memory table and the working copy stay as they were.
		m.setStatus(fmt.Sprintf("Save failed: %v", msg.err), true)
		return m
	}

	m.hash = msg.hash
	if m.edits != m.saved {
		// Edits made while the save ran are not on disk yet; keep them.
		m.table = msg.table
		m.applySearch()
		m.setStatus("Saved. Newer changes are not saved yet; press s again.", false)
		return m
	}
	m.swapTable(msg.table)
	if msg.reloadErr != nil {
		m.setStatus(fmt.Sprintf("Saved, but reloading the file failed: %v", msg.reloadErr), true)
		return m
	}
	m.setStatus("Changes saved successfully.", false)
	return m
}

func (m Model) handleReloaded(msg reloadedMsg) Model {
	if msg.err != nil {
		m.setStatus(fmt.Sprintf("Reload failed: %v", msg.err), true)
		return m
	}
	if m.dirty {
		// Edits started while the reload was in flight win.
		return m
	}
	m.hash = msg.hash
	m.swapTable(msg.table)
	m.setStatus("Reloaded after an outside change.", false)
	return m
}

// swapTable installs a freshly loaded table and re-derives the view state.
func (m *Model) swapTable(t records.Table) {
	m.table = t
	m.dirty = false
	m.applySearch()
	if m.selected != "" {
		m.pubs = records.Filter(m.table, m.selected)
		m.columns = m.columnsFor()
		if m.col >= len(m.columns) {
			m.col = 0
		}
		m.refreshGrid()
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

// refreshGrid rebuilds the grid's columns and rows from the working copy.
func (m *Model) refreshGrid() {
	cols := make([]table.Column, len(m.columns))
	w := columnWidth(m.width, len(m.columns))
	for i, c := range m.columns {
		title := c
		if i == m.col {
			title = "▸" + c
		}
		cols[i] = table.Column{Title: title, Width: w}
	}

	rows := make([]table.Row, len(m.pubs))
	for i, p := range m.pubs {
		row := make(table.Row, len(m.columns))
		for j, c := range m.columns {
			row[j] = p.Text(c)
		}
		rows[i] = row
	}

	cursor := m.grid.Cursor()
	m.grid.SetRows(nil)
	m.grid.SetColumns(cols)
	m.grid.SetRows(rows)
	if cursor >= len(rows) {
		cursor = len(rows) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	m.grid.SetCursor(cursor)
}

// refreshAll rebuilds the full-table browser from the current table.
func (m *Model) refreshAll() {
	fields := m.table.Columns()
	w := columnWidth(m.width, len(fields)+1)
	cols := []table.Column{{Title: "member", Width: w}}
	for _, f := range fields {
		cols = append(cols, table.Column{Title: f, Width: w})
	}

	all := m.table.Rows()
	rows := make([]table.Row, len(all))
	for i, r := range all {
		row := make(table.Row, 0, len(cols))
		row = append(row, r.MemberID)
		for _, f := range fields {
			row = append(row, r.Publication.Text(f))
		}
		rows[i] = row
	}

	m.all.SetRows(nil)
	m.all.SetColumns(cols)
	m.all.SetRows(rows)
	m.all.SetCursor(0)
}

func columnWidth(total, n int) int {
	if n == 0 {
		return minColumnWidth
	}
	w := (total - 4) / n
	return min(max(w, minColumnWidth), maxColumnWidth)
}

// View renders the dashboard.
func (m Model) View() string {
	var sb strings.Builder
	st := m.styles

	sb.WriteString(st.Title.Render("📚 Member Publication Review"))
	sb.WriteString("\n")

	sum := records.Summarize(m.table)
	sb.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n\n",
		st.Label.Render("Members matched:"), st.Metric.Render(fmt.Sprint(sum.Members)),
		st.Label.Render("Publications:"), st.Metric.Render(fmt.Sprint(sum.Publications)),
		st.Label.Render("Unique titles:"), st.Metric.Render(fmt.Sprint(sum.UniqueTitles))))

	years := chart.Bars("Publications by year", records.CountByYear(m.table), chartWidth, chartRows, st.Chart)
	langs := chart.Bars("Most common languages", records.CountByLanguage(m.table), chartWidth, chartRows, st.Chart)
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, st.Panel.Render(years), " ", st.Panel.Render(langs)))
	sb.WriteString("\n\n")

	if m.focus == focusBrowse {
		sb.WriteString(st.Selected.Render(fmt.Sprintf("All publications (%d)", m.table.Len())))
		sb.WriteString("\n")
		sb.WriteString(m.all.View())
		sb.WriteString("\n")
		sb.WriteString(st.Help.Render(m.helpText()))
		return sb.String()
	}

	sb.WriteString(m.search.View())
	sb.WriteString("\n")
	sb.WriteString(m.memberListView())
	sb.WriteString("\n")

	if m.selected != "" {
		header := fmt.Sprintf("Publications for %s (%d)", m.selected, len(m.pubs))
		if m.dirty {
			header += " *"
		}
		sb.WriteString(st.Selected.Render(header))
		sb.WriteString("\n")
		sb.WriteString(m.grid.View())
		sb.WriteString("\n")
		if m.focus == focusEditor {
			sb.WriteString(m.editor.View())
			sb.WriteString("\n")
		}
	}

	if m.status != "" {
		if m.statusErr {
			sb.WriteString(st.Error.Render(m.status))
		} else {
			sb.WriteString(st.Success.Render(m.status))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(st.Help.Render(m.helpText()))
	return sb.String()
}

func (m Model) memberListView() string {
	st := m.styles
	if len(m.members) == 0 {
		return st.Warning.Render("No matching members found.")
	}

	start := 0
	if m.cursor >= memberListHeight {
		start = m.cursor - memberListHeight + 1
	}
	end := min(start+memberListHeight, len(m.members))

	var sb strings.Builder
	for i := start; i < end; i++ {
		name := m.members[i]
		line := "  " + name
		if i == m.cursor && m.focus == focusMembers {
			line = "> " + name
		}
		if name == m.selected {
			sb.WriteString(st.Selected.Render(line))
		} else {
			sb.WriteString(line)
		}
		sb.WriteString("\n")
	}
	if end < len(m.members) {
		sb.WriteString(st.Label.Render(fmt.Sprintf("  … %d more", len(m.members)-end)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) helpText() string {
	switch m.focus {
	case focusSearch:
		return "type to filter • enter/esc: done"
	case focusEditor:
		return "enter: apply • esc: cancel"
	case focusBrowse:
		return "↑/↓: row • enter: edit this member • t/esc: back • q: quit"
	case focusGrid:
		return "↑/↓: row • ←/→: column • e: edit • a: add • d: delete • s: save • tab: members • q: quit"
	default:
		return "↑/↓: move • enter: select • /: search • t: all rows • tab: grid • s: save • q: quit"
	}
}

// Run starts the dashboard on the terminal and blocks until it exits.
func Run(t records.Table, path string, logger *zap.Logger, opts ...records.Option) error {
	m := New(t, path, logger, opts...)

	w, err := NewWatcher(path, logger)
	if err != nil {
		m.logger.Warn("not watching record file", zap.Error(err))
	} else {
		defer w.Close()
		m = m.WithChanges(w.Changes())
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}

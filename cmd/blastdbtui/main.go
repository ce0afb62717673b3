// Command blastdbtui is an interactive bubbletea browser over a legacy
// BLAST-style protein database: a scrollable record list on the left and a
// detail panel on the right that cycles through several inspection views of
// whichever record is selected.
//
// Grounded on cmd/tui/main.go in _examples/BuBitt-DRD4-F2 for the choice of
// stack (bubbletea program driving a bubbles/list.Model plus a lipgloss
// detail panel, with a toggleable help overlay); the layout math, key
// routing, and help-text generation below are this repo's own.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"blastdb/internal/record"
)

type theme struct {
	accent   lipgloss.Color
	panel    lipgloss.Color
	dim      lipgloss.Color
	border   lipgloss.Color
	warn     lipgloss.Color
	fg       lipgloss.Color
	codeBack lipgloss.Color
}

var defaultTheme = theme{
	accent:   lipgloss.Color("#5B8DEF"),
	panel:    lipgloss.Color("#22283A"),
	dim:      lipgloss.Color("#8892B0"),
	border:   lipgloss.Color("#3A4159"),
	warn:     lipgloss.Color("#E2574C"),
	fg:       lipgloss.Color("#E6E9F2"),
	codeBack: lipgloss.Color("#14182A"),
}

func (th theme) paneStyle() lipgloss.Style {
	return lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(th.border)
}

func (th theme) headingStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(th.accent).Bold(true)
}

func (th theme) dimStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(th.dim)
}

func (th theme) warnStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(th.warn).Bold(true)
}

func (th theme) bodyStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(th.fg).Background(th.codeBack).Padding(1).
		Border(lipgloss.RoundedBorder()).BorderForeground(th.border)
}

func (th theme) statusBarStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(th.fg).Background(th.panel).Padding(0, 1)
}

// viewMode is one way of rendering the selected record's header contents.
// Modes are data, not an enum with a String() switch, so adding one is a
// matter of appending to detailViews rather than touching Update/View.
type viewMode struct {
	key    string
	label  string
	render func(db *record.Database, rec record.Record) string
}

var detailViews = []viewMode{
	{key: "1", label: "Title", render: renderTitleView},
	{key: "2", label: "Seq-IDs", render: renderSeqIDsView},
	{key: "3", label: "Taxonomy", render: renderTaxonomyView},
	{key: "4", label: "Raw header", render: renderRawHeaderView},
}

func renderTitleView(db *record.Database, rec record.Record) string {
	var lines []string
	for _, dl := range rec.DefLines {
		lines = append(lines, dl.Title)
	}
	return strings.Join(lines, "\n")
}

func renderSeqIDsView(db *record.Database, rec record.Record) string {
	var lines []string
	for _, dl := range rec.DefLines {
		for _, id := range dl.SeqIDs {
			line := fmt.Sprintf("%s: %s", id.Type, id.Value)
			if id.Version != nil {
				line += fmt.Sprintf(" (version %d)", *id.Version)
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func renderTaxonomyView(db *record.Database, rec record.Record) string {
	var lines []string
	for _, dl := range rec.DefLines {
		if dl.TaxID != nil {
			lines = append(lines, fmt.Sprintf("taxid %d    %s", *dl.TaxID, dl.Title))
		}
	}
	return strings.Join(lines, "\n")
}

func renderRawHeaderView(db *record.Database, rec record.Record) string {
	blob, err := db.Index.HeaderSlice(db.HeaderFile, rec.OID)
	if err != nil {
		return "error: " + err.Error()
	}
	return hex.Dump(blob)
}

type listItem struct {
	rec record.Record
}

func (i listItem) FilterValue() string {
	if len(i.rec.DefLines) > 0 {
		return i.rec.DefLines[0].Title
	}
	return fmt.Sprintf("oid-%d", i.rec.OID)
}

func (i listItem) Title() string {
	if len(i.rec.DefLines) > 0 && i.rec.DefLines[0].Title != "" {
		return i.rec.DefLines[0].Title
	}
	return fmt.Sprintf("record %d", i.rec.OID)
}

func (i listItem) Description() string {
	desc := fmt.Sprintf("oid %d, %d residues", i.rec.OID, len(i.rec.Sequence))
	if i.rec.Warning != "" {
		desc += " [warning]"
	}
	return desc
}

const leftPaneWidthDivisor = 3 // left pane is 1/leftPaneWidthDivisor of the terminal

type model struct {
	list       list.Model
	db         *record.Database
	numRecords int
	viewIndex  int
	showHelp   bool
	width      int
	height     int
	th         theme
}

func newModel(db *record.Database, records []record.Record) model {
	items := make([]list.Item, len(records))
	for i, rec := range records {
		items[i] = listItem{rec: rec}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = fmt.Sprintf("%s (%d records)", db.Index.Title, len(records))
	l.SetShowStatusBar(false)
	l.SetShowPagination(true)
	l.SetFilteringEnabled(true)

	return model{
		list:       l,
		db:         db,
		numRecords: len(records),
		th:         defaultTheme,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetWidth(m.leftWidth())
		m.list.SetHeight(m.paneHeight())
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleKey dispatches a key press to either a global action (quit, toggle
// help) or a view-mode selection; it reports whether it consumed the key so
// Update can fall back to the list's own key handling otherwise.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit, true
	case "h", "?":
		m.showHelp = !m.showHelp
		return nil, true
	}
	for i, v := range detailViews {
		if msg.String() == v.key {
			m.viewIndex = i
			return nil, true
		}
	}
	return nil, false
}

func (m model) leftWidth() int  { return m.width / leftPaneWidthDivisor }
func (m model) rightWidth() int { return m.width - m.leftWidth() }
func (m model) paneHeight() int { return m.height - 3 }

func (m model) View() string {
	if m.width == 0 {
		return "loading database..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderList(), m.renderDetail())
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatus())
}

func (m model) renderList() string {
	return m.th.paneStyle().Width(m.leftWidth() - 2).Height(m.paneHeight()).Render(m.list.View())
}

func (m model) renderDetail() string {
	pane := m.th.paneStyle().Width(m.rightWidth() - 2).Height(m.paneHeight())

	item, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return pane.Render(m.th.dimStyle().Render("no record selected"))
	}
	rec := item.rec
	view := detailViews[m.viewIndex]

	heading := m.th.headingStyle().Render(fmt.Sprintf("record %d -- %s", rec.OID, view.label))
	body := view.render(m.db, rec)
	if body == "" {
		body = m.th.dimStyle().Render("(no data for this view)")
	} else {
		body = m.th.bodyStyle().Width(m.rightWidth() - 6).Render(body)
	}

	sections := []string{heading}
	if rec.Warning != "" {
		sections = append(sections, m.th.warnStyle().Render("warning: "+rec.Warning))
	}
	sections = append(sections, "", body)

	return pane.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m model) renderStatus() string {
	position := fmt.Sprintf("%d/%d", m.list.Index()+1, m.numRecords)
	var modeLabels []string
	for i, v := range detailViews {
		label := v.label
		if i == m.viewIndex {
			label = m.th.headingStyle().Render(label)
		}
		modeLabels = append(modeLabels, fmt.Sprintf("%s:%s", v.key, label))
	}
	left := m.th.statusBarStyle().Render(position + "  |  " + strings.Join(modeLabels, "  "))
	right := m.th.statusBarStyle().Render("h: help  q: quit")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	filler := m.th.statusBarStyle().Render(strings.Repeat(" ", gap))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

func (m model) renderHelp() string {
	var b strings.Builder
	b.WriteString("blastdbtui\n\n")
	b.WriteString("navigate: up/down or j/k, / to filter, enter to pick\n\n")
	b.WriteString("views:\n")
	for _, v := range detailViews {
		fmt.Fprintf(&b, "  %s  %s\n", v.key, v.label)
	}
	b.WriteString("\nh or ?  toggle this help\nq       quit\n")
	fmt.Fprintf(&b, "\n%d records loaded", m.numRecords)

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.th.accent).
		Padding(1, 2).
		Background(m.th.panel).
		Foreground(m.th.fg).
		Render(b.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func main() {
	indexFlag := flag.String("index", "", "path to the .pin index file (or its .zst-compressed form)")
	concurrencyFlag := flag.Int("concurrency", 0, "max concurrent record decodes (default: unbounded)")
	flag.Parse()

	if *indexFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: blastdbtui -index path/to/database.pin")
		os.Exit(2)
	}

	db, err := record.Open(*indexFlag)
	if err != nil {
		log.Fatal(err)
	}

	records, err := db.DecodeAll(context.Background(), *concurrencyFlag)
	if err != nil {
		log.Fatal(err)
	}

	p := tea.NewProgram(newModel(db, records), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

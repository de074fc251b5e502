// Package ui provides the Bubble Tea operator dashboard shown by the
// watch command: running pipeline counters, store totals, and the
// recent-activity feed.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/storyline/internal/family"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/store"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#58a6ff"))

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8b949e"))

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d2a8ff"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f85149"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#484f58"))
)

const refreshInterval = 2 * time.Second

type refreshMsg struct{}

// Model is the dashboard Bubble Tea model.
type Model struct {
	store *store.Store
	board *report.Board

	counters table.Model
	spinner  spinner.Model

	recent   []report.Entry
	families map[family.Status]int
	records  map[family.RecordState]int
	storeErr error
	width    int
	height   int
}

// New creates a dashboard over the store and the shared board.
func New(st *store.Store, board *report.Board) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950"))

	columns := []table.Column{
		{Title: "Counter", Width: 14},
		{Title: "Total", Width: 8},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(9),
		table.WithFocused(false),
	)

	return Model{
		store:    st,
		board:    board,
		counters: t,
		spinner:  s,
	}
}

// Init starts the spinner and the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refreshAfter())
}

func refreshAfter() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

// Update handles key, tick and refresh messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshMsg:
		m.refresh()
		return m, refreshAfter()
	}
	return m, nil
}

// refresh pulls fresh numbers from the board and the store.
func (m *Model) refresh() {
	c := m.board.Counters()
	m.counters.SetRows([]table.Row{
		{"clustered", fmt.Sprint(c.Clustered)},
		{"orphaned", fmt.Sprint(c.Orphaned)},
		{"recycled", fmt.Sprint(c.Recycled)},
		{"absorbed", fmt.Sprint(c.Absorbed)},
		{"created", fmt.Sprint(c.Created)},
		{"assigned", fmt.Sprint(c.Assigned)},
		{"merged", fmt.Sprint(c.Merged)},
		{"split", fmt.Sprint(c.Split)},
		{"failed calls", fmt.Sprint(c.FailedCalls)},
	})
	m.recent = m.board.Recent(12)

	m.families, m.storeErr = m.store.FamilyCounts()
	if m.storeErr == nil {
		m.records, m.storeErr = m.store.RecordCounts()
	}
}

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("STORYLINE %s", m.spinner.View())))
	b.WriteString("\n\n")

	b.WriteString(m.counters.View())
	b.WriteString("\n\n")

	if m.storeErr != nil {
		b.WriteString(failedStyle.Render(fmt.Sprintf("store error: %v", m.storeErr)))
		b.WriteString("\n\n")
	} else {
		b.WriteString(statsStyle.Render(fmt.Sprintf(
			"families  seed %d  active %d  merged %d  split %d  archived %d",
			m.families[family.StatusSeed], m.families[family.StatusActive],
			m.families[family.StatusMerged], m.families[family.StatusSplit],
			m.families[family.StatusArchived],
		)))
		b.WriteString("\n")
		b.WriteString(statsStyle.Render(fmt.Sprintf(
			"records   unassigned %d  assigned %d  recycled %d",
			m.records[family.RecordUnassigned], m.records[family.RecordAssigned],
			m.records[family.RecordRecycled],
		)))
		b.WriteString("\n\n")
	}

	b.WriteString(titleStyle.Render("RECENT ACTIVITY"))
	b.WriteString("\n")
	if len(m.recent) == 0 {
		b.WriteString(dimStyle.Render("  nothing yet"))
		b.WriteString("\n")
	}
	for _, e := range m.recent {
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			dimStyle.Render(e.At.Format("15:04:05")),
			sourceStyle.Render(fmt.Sprintf("%-8s", e.Source)),
			e.Message,
		))
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q to quit"))
	return b.String()
}

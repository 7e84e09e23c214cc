package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mbolt/svgpress/pkg/store"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// SnapshotListModel is the bubbletea model for interactive snapshot
// selection in "snapshot restore --interactive".
type SnapshotListModel struct {
	Snapshots []*store.Snapshot
	Cursor    int
	Selected  *store.Snapshot
	Height    int
	Offset    int
}

// NewSnapshotListModel creates a snapshot list model.
func NewSnapshotListModel(snaps []*store.Snapshot) SnapshotListModel {
	return SnapshotListModel{
		Snapshots: snaps,
		Height:    15,
	}
}

func (m SnapshotListModel) Init() tea.Cmd {
	return nil
}

func (m SnapshotListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Snapshots)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			m.Selected = m.Snapshots[m.Cursor]
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m SnapshotListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Snapshot"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Snapshots) {
		end = len(m.Snapshots)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		s := m.Snapshots[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		title := s.Title
		if title == "" {
			title = "—"
		}
		rows = append(rows, []string{
			cursor,
			s.ID[:8],
			title,
			s.ModuleHash[:12],
			formatRelativeTime(s.CreatedAt),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "ID", "Title", "Module", "Created").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return listSelectedStyle
			}
			return listNormalStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	if len(m.Snapshots) > m.Height {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("%d of %d", m.Cursor+1, len(m.Snapshots))))
		b.WriteString("\n")
	}
	return b.String()
}

// pickSnapshot runs the interactive picker and returns the chosen
// snapshot, or nil when the user quit without selecting.
func pickSnapshot(snaps []*store.Snapshot) (*store.Snapshot, error) {
	p := tea.NewProgram(NewSnapshotListModel(snaps))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(SnapshotListModel)
	if !ok {
		return nil, nil
	}
	return m.Selected, nil
}

// formatRelativeTime renders t relative to now for list display.
func formatRelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

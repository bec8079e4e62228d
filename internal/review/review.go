// Package review is the interactive approval screen for duplicate groups.
// Each group is shown with its members, the record that would be kept and
// whether the merge consolidates seasons; the user approves or skips it.
package review

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/dedup"
	"github.com/Nomadcxx/animerge/internal/quality"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned by Run when the user aborts the review.
var ErrCancelled = errors.New("review cancelled")

// Decision is the user's verdict on one group.
type Decision int

const (
	Pending Decision = iota
	Approved
	Skipped
)

func (d Decision) String() string {
	switch d {
	case Approved:
		return "merge"
	case Skipped:
		return "skip"
	default:
		return "pending"
	}
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	primaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dupStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	badgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	approvedTag  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("✓ merge")
	skippedTag   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("✗ skip")
)

// Model is the bubbletea model driving the review.
type Model struct {
	groups    []dedup.Group
	primaries []int
	decisions []Decision
	cursor    int
	cancelled bool
	finished  bool
	help      help.Model
	width     int
}

// New builds a review over groups.
func New(groups []dedup.Group) Model {
	m := Model{
		groups:    groups,
		primaries: make([]int, len(groups)),
		decisions: make([]Decision, len(groups)),
		help:      help.New(),
	}
	for i, g := range groups {
		m.primaries[i] = dedup.SelectPrimary(g.Members)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if len(m.groups) == 0 {
		return tea.Quit
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		m.cancelled = true
		return m, tea.Quit

	case key.Matches(msg, keys.Done):
		m.finished = true
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if len(m.groups) == 0 {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Approve):
		return m.decide(Approved)
	case key.Matches(msg, keys.Skip):
		return m.decide(Skipped)
	case key.Matches(msg, keys.ApproveAll):
		for i := m.cursor; i < len(m.decisions); i++ {
			if m.decisions[i] == Pending {
				m.decisions[i] = Approved
			}
		}
		m.finished = true
		return m, tea.Quit
	case key.Matches(msg, keys.Back):
		if m.cursor > 0 {
			m.cursor--
		}
	}
	return m, nil
}

func (m Model) decide(d Decision) (tea.Model, tea.Cmd) {
	m.decisions[m.cursor] = d
	if m.cursor == len(m.groups)-1 {
		m.finished = true
		return m, tea.Quit
	}
	m.cursor++
	return m, nil
}

func (m Model) View() string {
	if m.cancelled {
		return "Review cancelled, nothing will be merged.\n"
	}
	if len(m.groups) == 0 {
		return "No duplicate groups found.\n"
	}
	if m.finished {
		approved, skipped := m.counts()
		return fmt.Sprintf("Reviewed %d groups: %d to merge, %d skipped.\n",
			len(m.groups), approved, skipped)
	}

	var b strings.Builder
	g := m.groups[m.cursor]

	b.WriteString(titleStyle.Render(fmt.Sprintf("Group %d of %d", m.cursor+1, len(m.groups))))
	b.WriteString("  " + keyStyle.Render(g.Key))
	if dedup.SeasonIdentities(g.Members) > 1 {
		b.WriteString("  " + badgeStyle.Render("[consolidates seasons]"))
	}
	if d := m.decisions[m.cursor]; d != Pending {
		b.WriteString("  " + tagFor(d))
	}
	b.WriteString("\n\n")

	for i := range g.Members {
		b.WriteString(m.memberLine(&g.Members[i], i == m.primaries[m.cursor]))
		b.WriteString("\n")
	}

	approved, skipped := m.counts()
	b.WriteString(fmt.Sprintf("\n%d to merge, %d skipped, %d pending\n\n",
		approved, skipped, len(m.groups)-approved-skipped))
	b.WriteString(m.help.View(keys))
	b.WriteString("\n")
	return b.String()
}

func (m Model) memberLine(r *anime.Record, primary bool) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("#%d", r.ID), r.Title)
	if r.HasEnglishTitle() && *r.TitleEnglish != r.Title {
		parts = append(parts, "/ "+*r.TitleEnglish)
	}
	if r.Year != nil {
		parts = append(parts, fmt.Sprintf("(%d)", *r.Year))
	}
	if r.MalID != nil {
		parts = append(parts, fmt.Sprintf("mal:%d", *r.MalID))
	}
	if r.AniListID != nil {
		parts = append(parts, fmt.Sprintf("anilist:%d", *r.AniListID))
	}
	parts = append(parts, fmt.Sprintf("score %d", quality.ScoreRecord(r)))

	line := strings.Join(parts, " ")
	if primary {
		return primaryStyle.Render("  ★ keep   " + line)
	}
	return dupStyle.Render("    merge  " + line)
}

func tagFor(d Decision) string {
	if d == Approved {
		return approvedTag
	}
	return skippedTag
}

func (m Model) counts() (approved, skipped int) {
	for _, d := range m.decisions {
		switch d {
		case Approved:
			approved++
		case Skipped:
			skipped++
		}
	}
	return approved, skipped
}

// Decisions returns the verdict for every group, in group order.
func (m Model) Decisions() []Decision {
	return append([]Decision(nil), m.decisions...)
}

// Cancelled reports whether the user aborted the review.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Approved returns the groups the user chose to merge. A cancelled review
// approves nothing.
func (m Model) Approved() []dedup.Group {
	if m.cancelled {
		return nil
	}
	var out []dedup.Group
	for i, d := range m.decisions {
		if d == Approved {
			out = append(out, m.groups[i])
		}
	}
	return out
}

// Run shows the review and returns the approved groups.
func Run(groups []dedup.Group, opts ...tea.ProgramOption) ([]dedup.Group, error) {
	final, err := tea.NewProgram(New(groups), opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("review: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("review: unexpected model %T", final)
	}
	if m.Cancelled() {
		return nil, ErrCancelled
	}
	return m.Approved(), nil
}

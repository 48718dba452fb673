package tui

import (
	"context"
	"fmt"

	"runstream/internal/analysis"
	"runstream/internal/service"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ActivitiesModel is the activities list screen model
type ActivitiesModel struct {
	queryService *service.QueryService
	units        Units
	activities   []service.ActivitySummary
	counts       map[analysis.Status]int
	cursor       int
	offset       int
	total        int
	pageSize     int
	loading      bool
	err          error
}

// NewActivitiesModel creates a new activities model
func NewActivitiesModel(qs *service.QueryService, units Units) ActivitiesModel {
	return ActivitiesModel{
		queryService: qs,
		units:        units,
		pageSize:     15,
		loading:      true,
	}
}

// Init initializes the activities screen
func (m ActivitiesModel) Init() tea.Cmd {
	return m.loadPage
}

type activitiesLoadedMsg struct {
	activities []service.ActivitySummary
	counts     map[analysis.Status]int
	total      int
	err        error
}

func (m ActivitiesModel) loadPage() tea.Msg {
	ctx := context.Background()
	activities, err := m.queryService.GetActivitiesList(ctx, m.pageSize, m.offset)
	if err != nil {
		return activitiesLoadedMsg{err: err}
	}

	total, err := m.queryService.GetTotalActivityCount(ctx)
	if err != nil {
		return activitiesLoadedMsg{err: err}
	}

	counts, err := m.queryService.GetStatusCounts(ctx)
	if err != nil {
		return activitiesLoadedMsg{err: err}
	}

	return activitiesLoadedMsg{activities: activities, counts: counts, total: total}
}

// Update handles messages
func (m ActivitiesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case activitiesLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.activities = msg.activities
		m.counts = msg.counts
		m.total = msg.total
		if m.cursor >= len(m.activities) {
			m.cursor = max(len(m.activities)-1, 0)
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			} else if m.offset > 0 {
				// Go to previous page
				m.offset -= m.pageSize
				m.cursor = m.pageSize - 1
				m.loading = true
				return m, m.loadPage
			}
		case "down", "j":
			if m.cursor < len(m.activities)-1 {
				m.cursor++
			} else if m.offset+len(m.activities) < m.total {
				// Go to next page
				m.offset += m.pageSize
				m.cursor = 0
				m.loading = true
				return m, m.loadPage
			}
		case "pgup":
			if m.offset > 0 {
				m.offset = max(m.offset-m.pageSize, 0)
				m.cursor = 0
				m.loading = true
				return m, m.loadPage
			}
		case "pgdown":
			if m.offset+m.pageSize < m.total {
				m.offset += m.pageSize
				m.cursor = 0
				m.loading = true
				return m, m.loadPage
			}
		case "r":
			m.loading = true
			return m, m.loadPage
		case "enter":
			if len(m.activities) > 0 && m.cursor < len(m.activities) {
				activityID := m.activities[m.cursor].Activity.ID
				return m, func() tea.Msg {
					return OpenActivityDetailMsg{ActivityID: activityID}
				}
			}
		}
	}
	return m, nil
}

// View renders the activities list
func (m ActivitiesModel) View() string {
	if m.loading {
		return "\n  Loading activities..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	if len(m.activities) == 0 {
		return "\n  No activities found. Press 's' to sync with Strava."
	}

	var sections []string

	// Title with pagination info
	startNum := m.offset + 1
	endNum := m.offset + len(m.activities)
	title := cardTitleStyle.Render(fmt.Sprintf("Activities (%d-%d of %d)", startNum, endNum, m.total))
	sections = append(sections, title)
	sections = append(sections, m.renderCounts())

	// Header
	header := tableHeaderStyle.Render(fmt.Sprintf("   %-10s  %-25s  %9s  %6s  %-11s  %-5s  %5s",
		"Date", "Name", "Distance", "Pace", "Status", "Tier", "Conf"))
	sections = append(sections, header)

	// Rows
	for i, s := range m.activities {
		a := s.Activity

		tier := "-"
		if s.Tier != "" {
			tier = tierLabel(s.Tier)
		}

		conf := "-"
		if s.Confidence != nil {
			conf = fmt.Sprintf("%.2f", *s.Confidence)
		}

		// Cursor indicator
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}

		row := fmt.Sprintf("%s%-10s  %-25s  %9s  %6s  %-11s  %-5s  %5s",
			cursor,
			a.StartDateLocal.Format("Jan 02"),
			truncateName(a.Name, 25),
			m.units.FormatDistance(a.Distance),
			m.units.FormatPace(a.MovingTime, a.Distance),
			statusLabel(s.Status),
			tier,
			conf,
		)

		if i == m.cursor {
			sections = append(sections, tableSelectedStyle.Render(row))
		} else {
			sections = append(sections, statusRowStyle(s.Status).Render(row))
		}
	}

	// Help
	help := statusStyle.Render("\n  enter: view analysis  j/k: navigate  pgup/pgdn: page  r: refresh")
	sections = append(sections, help)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m ActivitiesModel) renderCounts() string {
	if len(m.counts) == 0 {
		return ""
	}
	var line string
	add := func(st analysis.Status, n int) {
		if n == 0 {
			return
		}
		if line != "" {
			line += "  "
		}
		line += statusRowStyle(st).Render(fmt.Sprintf("%s %d", statusLabel(st), n))
	}
	add(analysis.StatusSuccess, m.counts[analysis.StatusSuccess])
	add(analysis.StatusPending, m.counts[analysis.StatusPending]+m.counts[analysis.StatusFetching])
	add(analysis.StatusError, m.counts[analysis.StatusError])
	if line == "" {
		return ""
	}
	return "  " + line
}

// statusLabel is the list text for a lifecycle status. Pending and fetching
// read the same and unavailable activities show nothing.
func statusLabel(st analysis.Status) string {
	switch {
	case st.InProgress():
		return "in progress"
	case st == analysis.StatusUnavailable:
		return ""
	}
	return string(st)
}

func tierLabel(t analysis.Tier) string {
	switch t {
	case analysis.Tier1:
		return "T1"
	case analysis.Tier2:
		return "T2"
	case analysis.Tier3:
		return "T3"
	}
	return string(t)
}

func truncateName(name string, maxLen int) string {
	r := []rune(name)
	if len(r) <= maxLen {
		return name
	}
	return string(r[:maxLen-3]) + "..."
}

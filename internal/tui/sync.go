package tui

import (
	"context"
	"fmt"
	"strings"

	"runstream/internal/service"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SyncModel is the sync screen model
type SyncModel struct {
	syncService *service.SyncService
	spinner     spinner.Model
	syncing     bool
	progress    service.SyncProgress
	updates     <-chan service.SyncProgress
	finished    <-chan SyncDoneMsg
	result      *service.SyncResult
	err         error
	done        bool
}

// NewSyncModel creates a new sync model
func NewSyncModel(ss *service.SyncService) SyncModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)
	return SyncModel{
		syncService: ss,
		spinner:     sp,
	}
}

// Init initializes the sync screen
func (m SyncModel) Init() tea.Cmd {
	return nil
}

// SyncDoneMsg is sent when sync finishes
type SyncDoneMsg struct {
	Result *service.SyncResult
	Err    error
}

type syncProgressMsg service.SyncProgress

// Update handles messages
func (m SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case syncProgressMsg:
		m.progress = service.SyncProgress(msg)
		return m, waitForSync(m.updates, m.finished)

	case SyncDoneMsg:
		m.syncing = false
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, func() tea.Msg { return SyncCompleteMsg{} }

	case spinner.TickMsg:
		if !m.syncing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if !m.syncing && m.syncService != nil {
			switch msg.String() {
			case "enter", "s":
				return m.start()
			}
		}
	}
	return m, nil
}

// start launches SyncAll in the background. Progress flows through a
// channel that SyncAll closes when it returns.
func (m SyncModel) start() (SyncModel, tea.Cmd) {
	updates := make(chan service.SyncProgress, 16)
	finished := make(chan SyncDoneMsg, 1)
	svc := m.syncService
	go func() {
		result, err := svc.SyncAll(context.Background(), updates)
		finished <- SyncDoneMsg{Result: result, Err: err}
	}()

	m.syncing = true
	m.done = false
	m.err = nil
	m.result = nil
	m.progress = service.SyncProgress{}
	m.updates = updates
	m.finished = finished
	return m, tea.Batch(m.spinner.Tick, waitForSync(updates, finished))
}

func waitForSync(updates <-chan service.SyncProgress, finished <-chan SyncDoneMsg) tea.Cmd {
	return func() tea.Msg {
		if p, ok := <-updates; ok {
			return syncProgressMsg(p)
		}
		return <-finished
	}
}

// View renders the sync screen
func (m SyncModel) View() string {
	var sections []string

	title := cardTitleStyle.Render("Strava Sync")
	sections = append(sections, title)

	if m.syncService == nil {
		sections = append(sections, warningStyle.Render("\n  Strava is not configured. Run 'runstream init-config' and add credentials."))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err)))
		sections = append(sections, "\n"+statusStyle.Render("  Press 's' or Enter to retry"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.done && !m.syncing {
		sections = append(sections, successStyle.Render("\n  Sync complete!"))
		sections = append(sections, m.renderSummary())
		sections = append(sections, "\n"+statusStyle.Render("  Press '1' to go to activities"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.syncing {
		sections = append(sections, m.renderProgress())
	} else {
		sections = append(sections, m.renderStartPrompt())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m SyncModel) renderStartPrompt() string {
	var lines []string

	lines = append(lines, "")
	lines = append(lines, "  This will sync your Strava runs:")
	lines = append(lines, "")
	lines = append(lines, "  1. Fetch new activities from Strava")
	lines = append(lines, "  2. Download detailed stream data")
	lines = append(lines, "  3. Analyze pending streams")
	lines = append(lines, "")

	// Show rate limit status
	short, daily := m.syncService.RateLimitStatus()
	lines = append(lines, statusStyle.Render(fmt.Sprintf("  API requests left: %d (15min), %d (daily)", short, daily)))
	lines = append(lines, "")
	lines = append(lines, statusStyle.Render("  Press 's' or Enter to start sync"))

	return strings.Join(lines, "\n")
}

func (m SyncModel) renderProgress() string {
	var lines []string

	lines = append(lines, "")
	lines = append(lines, "  "+m.spinner.View()+" Syncing with Strava...")
	lines = append(lines, "")

	phases := []struct{ key, label string }{
		{"activities", "Fetching new activities"},
		{"streams", "Downloading stream data"},
		{"analysis", "Analyzing streams"},
	}
	for i, ph := range phases {
		line := fmt.Sprintf("  %d. %s", i+1, ph.label)
		if ph.key == m.progress.Phase {
			line = navActiveStyle.Render(line)
			if m.progress.Total > 0 {
				pct := float64(m.progress.Completed) / float64(m.progress.Total)
				line += fmt.Sprintf("  %s %d/%d", RenderProgressBar(pct, 20), m.progress.Completed, m.progress.Total)
			}
		}
		lines = append(lines, line)
	}

	if m.progress.CurrentActivity != "" {
		lines = append(lines, "")
		lines = append(lines, statusStyle.Render("  "+truncateName(m.progress.CurrentActivity, 40)))
	}

	return strings.Join(lines, "\n")
}

func (m SyncModel) renderSummary() string {
	var lines []string

	if m.result == nil {
		return ""
	}

	r := m.result
	lines = append(lines, "")

	if r.ActivitiesStored > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %d activities synced", r.ActivitiesStored)))
	} else {
		lines = append(lines, statusStyle.Render("  No new activities"))
	}

	if r.StreamsFetched > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %d streams downloaded", r.StreamsFetched)))
	}

	if r.StreamsMissing > 0 {
		lines = append(lines, statusStyle.Render(fmt.Sprintf("  %d activities without streams", r.StreamsMissing)))
	}

	if r.Analyzed > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %d activities analyzed", r.Analyzed)))
	}

	if len(r.Errors) > 0 {
		lines = append(lines, "")
		lines = append(lines, warningStyle.Render(fmt.Sprintf("  %d errors occurred", len(r.Errors))))
	}

	return strings.Join(lines, "\n")
}

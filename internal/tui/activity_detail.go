package tui

import (
	"context"
	"fmt"
	"strings"

	"runstream/internal/analysis"
	"runstream/internal/service"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

// ActivityDetailModel is the activity detail screen model
type ActivityDetailModel struct {
	queryService *service.QueryService
	analyzer     *service.AnalysisService
	units        Units
	activityID   int64
	detail       *service.ActivityDetail
	viewport     viewport.Model
	loading      bool
	reprocessing bool
	err          error
	width        int
	height       int
	ready        bool
}

// NewActivityDetailModel creates a new activity detail model
func NewActivityDetailModel(qs *service.QueryService, analyzer *service.AnalysisService, units Units, activityID int64, width, height int) ActivityDetailModel {
	m := ActivityDetailModel{
		queryService: qs,
		analyzer:     analyzer,
		units:        units,
		activityID:   activityID,
		loading:      true,
		width:        width,
		height:       height,
	}

	if width > 0 && height > 0 {
		m.viewport = viewport.New(width, height-6) // Reserve space for header/footer
		m.ready = true
	}

	return m
}

// Init initializes the activity detail screen
func (m ActivityDetailModel) Init() tea.Cmd {
	return m.loadDetail
}

type activityDetailLoadedMsg struct {
	detail *service.ActivityDetail
	err    error
}

type reprocessDoneMsg struct {
	err error
}

func (m ActivityDetailModel) loadDetail() tea.Msg {
	detail, err := m.queryService.GetActivityDetail(context.Background(), m.activityID)
	return activityDetailLoadedMsg{detail: detail, err: err}
}

func (m ActivityDetailModel) reprocess() tea.Msg {
	_, err := m.analyzer.Reprocess(context.Background(), m.activityID)
	return reprocessDoneMsg{err: err}
}

// Update handles messages
func (m ActivityDetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case activityDetailLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.detail = msg.detail
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}

	case reprocessDoneMsg:
		m.reprocessing = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m, tea.Batch(m.loadDetail, func() tea.Msg {
			return StatusMsg(fmt.Sprintf("Activity %d reanalyzed", m.activityID))
		})

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}
		if m.detail != nil {
			m.viewport.SetContent(m.renderContent())
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.loading = true
			return m, m.loadDetail
		case "p":
			if m.analyzer != nil && !m.reprocessing {
				m.reprocessing = true
				return m, m.reprocess
			}
		}
	}

	// Handle viewport scrolling
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the activity detail screen
func (m ActivityDetailModel) View() string {
	if m.loading {
		return "\n  Loading activity analysis..."
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err))
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	help := "  esc: back to list  j/k or arrows: scroll  r: refresh  p: reanalyze"
	if m.reprocessing {
		help = "  Reanalyzing..."
	}
	footer := statusStyle.Render(help)

	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), footer)
}

func (m ActivityDetailModel) renderContent() string {
	if m.detail == nil {
		return "No data"
	}

	sections := []string{m.renderHeader()}

	view := m.detail.Analysis
	switch {
	case view == nil:
		sections = append(sections, "  No analysis yet")
	case view.InProgress:
		sections = append(sections, warningStyle.Render("  Analysis in progress..."))
	case view.Status == analysis.StatusUnavailable:
		// no analysis to show
	case view.Status == analysis.StatusError:
		sections = append(sections, errorStyle.Render("  Analysis failed. Press p to retry."))
	case view.Result != nil:
		r := view.Result
		sections = append(sections, m.renderSummary(r))
		if len(r.Segments) > 0 {
			sections = append(sections, m.renderSegments(r.Segments))
		}
		sections = append(sections, m.renderDrift(r.Drift))
		if r.PlanComparison != nil {
			sections = append(sections, m.renderPlan(r.PlanComparison))
		}
		if len(r.Moments) > 0 {
			sections = append(sections, m.renderMoments(r.Moments))
		}
		if len(r.Series) > 2 {
			sections = append(sections, m.renderEffortChart(r.Series))
			sections = append(sections, m.renderPaceChart(r.Series))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m ActivityDetailModel) renderHeader() string {
	a := m.detail.Activity
	title := cardTitleStyle.Render(a.Name)

	// Date and basic stats
	date := a.StartDateLocal.Format("Monday, January 2, 2006 at 3:04 PM")
	duration := formatDuration(a.MovingTime)
	pace := m.units.FormatPace(a.MovingTime, a.Distance)

	subtitle := lipgloss.NewStyle().Foreground(mutedColor).Render(date)

	stats := fmt.Sprintf("%s  •  %s  •  %s %s", m.units.FormatDistance(a.Distance), duration, pace, m.units.PaceLabel())
	statsLine := lipgloss.NewStyle().Foreground(textColor).Bold(true).Render(stats)

	lines := []string{"", title, subtitle, statsLine}
	if !m.detail.HasStream {
		lines = append(lines, statusStyle.Render("No stream stored"))
	}
	if m.detail.Plan != nil {
		lines = append(lines, statusStyle.Render("Planned workout attached"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, append(lines, "")...)
}

func (m ActivityDetailModel) renderSummary(r *analysis.StreamAnalysisResult) string {
	lines := []string{sectionTitle("Analysis")}

	lines = append(lines, "  "+RenderMetric("Tier", tierLabel(r.TierUsed), ""))
	lines = append(lines, "  "+RenderMetric("Confidence", fmt.Sprintf("%.2f", r.Confidence), ""))
	lines = append(lines, "  "+RenderMetric("Channels", joinChannels(r.ChannelsPresent), ""))
	if len(r.ChannelsMissing) > 0 {
		lines = append(lines, "  "+RenderMetric("Missing", joinChannels(r.ChannelsMissing), ""))
	}
	lines = append(lines, "  "+RenderMetric("Samples", fmt.Sprintf("%d", r.PointCount), ""))

	crossRun := "no"
	if r.CrossRunComparable {
		crossRun = "yes"
	}
	lines = append(lines, "  "+RenderMetric("Cross-run", crossRun, ""))

	if len(r.EstimatedFlags) > 0 {
		flags := make([]string, len(r.EstimatedFlags))
		for i, f := range r.EstimatedFlags {
			flags[i] = string(f)
		}
		lines = append(lines, "  "+RenderMetric("Estimated", strings.Join(flags, ", "), ""))
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func (m ActivityDetailModel) renderSegments(segs []analysis.Segment) string {
	lines := []string{sectionTitle("Segments")}

	header := fmt.Sprintf("  %-9s  %7s  %7s  %9s  %10s  %5s  %5s", "Type", "Start", "Time", "Distance", "Pace", "HR", "Cad")
	lines = append(lines, lipgloss.NewStyle().Foreground(primaryColor).Render(header))

	for _, s := range segs {
		label := lipgloss.NewStyle().Foreground(segmentColors[s.Type]).Render(fmt.Sprintf("%-9s", s.Type))
		row := fmt.Sprintf("  %s  %7s  %7s  %9s  %10s  %5s  %5s",
			label,
			formatClock(s.StartTimeS),
			formatClock(s.DurationS),
			m.units.FormatDistance(s.DistanceM),
			m.units.FormatPaceSKm(s.AvgPaceSKm),
			formatOptional(s.AvgHR, "%.0f"),
			formatOptional(s.AvgCadence, "%.0f"),
		)
		lines = append(lines, row)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func (m ActivityDetailModel) renderDrift(d analysis.DriftAnalysis) string {
	lines := []string{sectionTitle("Drift")}
	lines = append(lines, "  "+RenderMetric("Cardiac", formatOptional(d.CardiacPct, "%+.1f%%"), driftTrend(d.CardiacPct)))
	lines = append(lines, "  "+RenderMetric("Pace", formatOptional(d.PacePct, "%+.1f%%"), driftTrend(d.PacePct)))
	lines = append(lines, "  "+RenderMetric("Cadence", formatOptional(d.CadenceTrendBpmPerKm, "%+.2f spm/km"), ""))
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func (m ActivityDetailModel) renderPlan(p *analysis.PlanComparison) string {
	rows := []string{
		fmt.Sprintf("%-10s  %9s  %9s  %9s", "", "Planned", "Actual", "Delta"),
		fmt.Sprintf("%-10s  %9s  %9s  %9s", "Duration",
			formatOptional(p.PlannedDurationMin, "%.1f"), fmt.Sprintf("%.1f", p.ActualDurationMin),
			formatOptional(p.DurationDeltaMin, "%+.1f")),
		fmt.Sprintf("%-10s  %9s  %9s  %9s", "Distance",
			formatOptional(p.PlannedDistanceKm, "%.2f"), fmt.Sprintf("%.2f", p.ActualDistanceKm),
			formatOptional(p.DistanceDeltaKm, "%+.2f")),
		fmt.Sprintf("%-10s  %9s  %9s  %9s", "Pace s/km",
			formatOptional(p.PlannedPaceSKm, "%.0f"), formatOptional(p.ActualPaceSKm, "%.0f"),
			formatOptional(p.PaceDeltaSKm, "%+.0f")),
	}
	intervals := fmt.Sprintf("%-10s  %9s  %9d", "Intervals", "-", p.ActualIntervalCount)
	if p.PlannedIntervalCount != nil {
		mark := "✗"
		if p.IntervalCountMatch != nil && *p.IntervalCountMatch {
			mark = "✓"
		}
		intervals = fmt.Sprintf("%-10s  %9d  %9d  %9s", "Intervals", *p.PlannedIntervalCount, p.ActualIntervalCount, mark)
	}
	rows = append(rows, intervals)

	return lipgloss.JoinVertical(lipgloss.Left,
		sectionTitle("Plan vs Actual"),
		cardStyle.Render(strings.Join(rows, "\n")),
		"",
	)
}

func (m ActivityDetailModel) renderMoments(moments []analysis.Moment) string {
	lines := []string{sectionTitle("Moments")}
	for _, mo := range moments {
		where := ""
		if mo.Context != nil {
			where = "(" + string(*mo.Context) + ")"
		}
		line := fmt.Sprintf("  %7s  %-15s  %8s  %s",
			formatClock(mo.TimeS), mo.Type, formatOptional(mo.Value, "%.1f"), where)
		lines = append(lines, line)
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func (m ActivityDetailModel) renderEffortChart(series []analysis.SeriesPoint) string {
	data := make([]float64, len(series))
	for i, p := range series {
		data[i] = p.Effort
	}
	chart := asciigraph.Plot(downsample(data, 60),
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Precision(2),
	)
	return strings.Join([]string{sectionTitle("Effort"), chart, ""}, "\n")
}

func (m ActivityDetailModel) renderPaceChart(series []analysis.SeriesPoint) string {
	title := sectionTitle(fmt.Sprintf("Pace (%s)", m.units.PaceLabel()))

	// Carry the last pace across stopped samples
	var data []float64
	last := 0.0
	for _, p := range series {
		if p.PaceSPerKm != nil {
			last = m.units.PaceValue(*p.PaceSPerKm)
		}
		if last > 0 {
			data = append(data, last)
		}
	}
	if len(data) < 3 {
		return strings.Join([]string{title, "  No pace data", ""}, "\n")
	}

	chart := asciigraph.Plot(downsample(data, 60),
		asciigraph.Height(8),
		asciigraph.Width(60),
	)
	return strings.Join([]string{title, chart, ""}, "\n")
}

func joinChannels(chs []analysis.Channel) string {
	if len(chs) == 0 {
		return "-"
	}
	parts := make([]string, len(chs))
	for i, c := range chs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func formatOptional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func driftTrend(v *float64) string {
	switch {
	case v == nil:
		return ""
	case *v > 5:
		return "↓ high"
	case *v < 0:
		return "↑"
	}
	return ""
}

// downsample averages data into targetLen buckets
func downsample(data []float64, targetLen int) []float64 {
	if len(data) <= targetLen {
		return data
	}

	result := make([]float64, targetLen)
	ratio := float64(len(data)) / float64(targetLen)

	for i := 0; i < targetLen; i++ {
		start := int(float64(i) * ratio)
		end := min(int(float64(i+1)*ratio), len(data))

		sum := 0.0
		for j := start; j < end; j++ {
			sum += data[j]
		}
		if end > start {
			result[i] = sum / float64(end-start)
		}
	}

	return result
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"runstream/internal/analysis"
	"runstream/internal/store"
)

// QueryService provides read-only queries for the TUI and the HTTP API
type QueryService struct {
	store *store.DB
}

// NewQueryService creates a new query service
func NewQueryService(db *store.DB) *QueryService {
	return &QueryService{store: db}
}

// ActivitySummary is one row of the activity list
type ActivitySummary struct {
	Activity   store.Activity
	Status     analysis.Status
	Tier       analysis.Tier // empty unless Status is success
	Confidence *float64
}

// AnalysisView is the output contract for one activity: a lifecycle status
// plus the result when, and only when, the status is success
type AnalysisView struct {
	ActivityID int64                          `json:"activity_id"`
	Version    int                            `json:"analysis_version"`
	Status     analysis.Status                `json:"status"`
	InProgress bool                           `json:"in_progress"`
	Reason     analysis.UnavailableReason     `json:"reason,omitempty"`
	RunID      string                         `json:"run_id,omitempty"`
	ComputedAt *time.Time                     `json:"computed_at,omitempty"`
	Result     *analysis.StreamAnalysisResult `json:"result,omitempty"`
}

// ActivityDetail bundles everything the detail screen shows
type ActivityDetail struct {
	Activity  store.Activity
	HasStream bool
	Plan      *store.PlannedWorkout
	Analysis  *AnalysisView
}

// GetActivitiesList returns paginated activities with their analysis status
func (q *QueryService) GetActivitiesList(ctx context.Context, limit, offset int) ([]ActivitySummary, error) {
	rows, err := q.store.ListActivityStatuses(ctx, analysis.Version, limit, offset)
	if err != nil {
		return nil, err
	}

	result := make([]ActivitySummary, len(rows))
	for i, r := range rows {
		result[i] = ActivitySummary{
			Activity:   r.Activity,
			Status:     lifecycleStatus(r.Status),
			Confidence: r.Confidence,
		}
		if r.Tier != nil {
			result[i].Tier = analysis.Tier(*r.Tier)
		}
	}
	return result, nil
}

// GetAnalysis returns the current-version analysis view of an activity.
// An activity with no record yet is reported as pending.
func (q *QueryService) GetAnalysis(ctx context.Context, id int64) (*AnalysisView, error) {
	if _, err := q.store.GetActivity(ctx, id); err != nil {
		return nil, err
	}

	rec, err := q.store.GetAnalysis(ctx, id, analysis.Version)
	if errors.Is(err, store.ErrAnalysisNotFound) {
		return newView(id, analysis.StatusPending), nil
	}
	if err != nil {
		return nil, err
	}
	return ViewFromRecord(rec)
}

// ViewFromRecord builds the consumer view of a cached record
func ViewFromRecord(rec *store.AnalysisRecord) (*AnalysisView, error) {
	v := newView(rec.ActivityID, lifecycleStatus(rec.Status))
	v.Version = rec.AnalysisVersion
	v.Reason = analysis.UnavailableReason(rec.Reason)
	v.RunID = rec.RunID
	if !rec.ComputedAt.IsZero() && v.Status.Terminal() {
		t := rec.ComputedAt
		v.ComputedAt = &t
	}

	res, err := DecodeResult(rec)
	if err != nil {
		return nil, err
	}
	v.Result = res
	return v, nil
}

func newView(id int64, status analysis.Status) *AnalysisView {
	return &AnalysisView{
		ActivityID: id,
		Version:    analysis.Version,
		Status:     status,
		InProgress: status.InProgress(),
	}
}

// GetActivityDetail returns an activity with its plan and analysis
func (q *QueryService) GetActivityDetail(ctx context.Context, id int64) (*ActivityDetail, error) {
	activity, err := q.store.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}

	plan, err := q.store.GetPlannedWorkout(ctx, id)
	if err != nil && !errors.Is(err, store.ErrPlanNotFound) {
		return nil, fmt.Errorf("loading plan: %w", err)
	}

	hasStream, err := q.store.HasStreams(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("checking streams: %w", err)
	}

	view, err := q.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ActivityDetail{Activity: *activity, HasStream: hasStream, Plan: plan, Analysis: view}, nil
}

// GetTotalActivityCount returns the total number of activities
func (q *QueryService) GetTotalActivityCount(ctx context.Context) (int, error) {
	return q.store.CountActivities(ctx)
}

// GetStatusCounts returns how many activities sit in each lifecycle status
// at the current analysis version
func (q *QueryService) GetStatusCounts(ctx context.Context) (map[analysis.Status]int, error) {
	raw, err := q.store.CountAnalysesByStatus(ctx, analysis.Version)
	if err != nil {
		return nil, err
	}
	total, err := q.store.CountActivities(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[analysis.Status]int, len(raw)+1)
	recorded := 0
	for status, n := range raw {
		counts[lifecycleStatus(status)] += n
		recorded += n
	}
	if missing := total - recorded; missing > 0 {
		counts[analysis.StatusPending] += missing
	}
	return counts, nil
}

// lifecycleStatus maps a stored status to the consumer status; no record
// means pending
func lifecycleStatus(s string) analysis.Status {
	if s == "" {
		return analysis.StatusPending
	}
	return analysis.Status(s)
}

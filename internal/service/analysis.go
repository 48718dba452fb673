package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"runstream/internal/analysis"
	"runstream/internal/store"
)

// Repository is the persistence the analysis service reads raw streams from
// and writes the (activity_id, analysis_version) cache to. *store.DB
// satisfies it.
type Repository interface {
	GetActivity(ctx context.Context, id int64) (*store.Activity, error)
	GetStreams(ctx context.Context, activityID int64) ([]store.StreamPoint, error)
	GetPlannedWorkout(ctx context.Context, activityID int64) (*store.PlannedWorkout, error)
	SavePlannedWorkout(ctx context.Context, p *store.PlannedWorkout) error
	DeletePlannedWorkout(ctx context.Context, activityID int64) error
	GetAnalysis(ctx context.Context, activityID int64, version int) (*store.AnalysisRecord, error)
	SaveAnalysis(ctx context.Context, rec *store.AnalysisRecord) error
	GetActivitiesNeedingAnalysis(ctx context.Context, version int) ([]store.Activity, error)
}

// Reporter receives internal analysis faults
type Reporter func(err error, tags map[string]string)

// AnalysisService runs the stream analysis pipeline and caches its outcome
type AnalysisService struct {
	repo       Repository
	thresholds analysis.Thresholds
	workers    int
	logger     *slog.Logger
	report     Reporter

	group singleflight.Group
	locks sync.Map // activity ID -> *sync.Mutex held across read, compute and save
}

// NewAnalysisService creates an analysis service. report may be nil.
func NewAnalysisService(repo Repository, th analysis.Thresholds, workers int, logger *slog.Logger, report Reporter) *AnalysisService {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if report == nil {
		report = func(error, map[string]string) {}
	}
	return &AnalysisService{
		repo:       repo,
		thresholds: th,
		workers:    workers,
		logger:     logger.With("component", "analysis"),
		report:     report,
	}
}

// BatchResult summarizes one ProcessPending run
type BatchResult struct {
	Processed int
	ByStatus  map[analysis.Status]int
	Errors    []error
}

// Process returns the cached record for the current analysis version, or
// computes and stores it when there is none yet. Records still pending or
// fetching are recomputed.
func (s *AnalysisService) Process(ctx context.Context, activityID int64) (*store.AnalysisRecord, error) {
	rec, err := s.repo.GetAnalysis(ctx, activityID, analysis.Version)
	if err == nil && analysis.Status(rec.Status).Terminal() {
		return rec, nil
	}
	if err != nil && !errors.Is(err, store.ErrAnalysisNotFound) {
		return nil, fmt.Errorf("reading cached analysis: %w", err)
	}
	return s.run(ctx, activityID, false)
}

// Reprocess recomputes the analysis and overwrites the cached record.
// Concurrent calls share one computation.
func (s *AnalysisService) Reprocess(ctx context.Context, activityID int64) (*store.AnalysisRecord, error) {
	return s.run(ctx, activityID, false)
}

// Refresh recomputes the analysis after the stored inputs of an activity
// changed. It never shares a computation that may have read the old inputs.
func (s *AnalysisService) Refresh(ctx context.Context, activityID int64) (*store.AnalysisRecord, error) {
	return s.run(ctx, activityID, true)
}

// SetPlan stores the prescribed workout for an activity and recomputes its
// analysis so the plan comparison reflects it
func (s *AnalysisService) SetPlan(ctx context.Context, plan *store.PlannedWorkout) (*store.AnalysisRecord, error) {
	if err := s.repo.SavePlannedWorkout(ctx, plan); err != nil {
		return nil, fmt.Errorf("saving plan for %d: %w", plan.ActivityID, err)
	}
	return s.Refresh(ctx, plan.ActivityID)
}

// ClearPlan removes the prescribed workout and recomputes the analysis
// without a plan comparison
func (s *AnalysisService) ClearPlan(ctx context.Context, activityID int64) (*store.AnalysisRecord, error) {
	if err := s.repo.DeletePlannedWorkout(ctx, activityID); err != nil && !errors.Is(err, store.ErrPlanNotFound) {
		return nil, fmt.Errorf("deleting plan for %d: %w", activityID, err)
	}
	return s.Refresh(ctx, activityID)
}

// ProcessPending analyzes every activity with a stored stream and no
// terminal record at the current version, using a bounded worker pool.
// Per-activity failures are collected rather than aborting the batch.
func (s *AnalysisService) ProcessPending(ctx context.Context) (*BatchResult, error) {
	activities, err := s.repo.GetActivitiesNeedingAnalysis(ctx, analysis.Version)
	if err != nil {
		return nil, fmt.Errorf("listing activities needing analysis: %w", err)
	}

	result := &BatchResult{ByStatus: make(map[analysis.Status]int)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, a := range activities {
		id := a.ID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := s.run(gctx, id, false)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("activity %d: %w", id, err))
				return nil
			}
			result.Processed++
			result.ByStatus[analysis.Status(rec.Status)]++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	s.logger.Info("Batch analysis finished",
		"analysis_version", analysis.Version,
		"processed", result.Processed,
		"failed", len(result.Errors),
	)
	return result, nil
}

// run collapses concurrent triggers for one activity into one computation.
// A fresh run starts its own computation; it waits for any older one to save
// first so the newest inputs always produce the cached record.
func (s *AnalysisService) run(ctx context.Context, activityID int64, fresh bool) (*store.AnalysisRecord, error) {
	key := strconv.FormatInt(activityID, 10)
	if fresh {
		s.group.Forget(key)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		mu := s.lock(activityID)
		mu.Lock()
		defer mu.Unlock()
		// Joined callers share this run, so it outlives the first caller's ctx
		return s.compute(context.WithoutCancel(ctx), activityID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.AnalysisRecord), nil
}

func (s *AnalysisService) lock(activityID int64) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(activityID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *AnalysisService) compute(ctx context.Context, activityID int64) (*store.AnalysisRecord, error) {
	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("loading activity %d: %w", activityID, err)
	}
	points, err := s.repo.GetStreams(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("loading streams for %d: %w", activityID, err)
	}
	plan, err := s.repo.GetPlannedWorkout(ctx, activityID)
	if err != nil && !errors.Is(err, store.ErrPlanNotFound) {
		return nil, fmt.Errorf("loading plan for %d: %w", activityID, err)
	}

	runID := uuid.NewString()
	start := time.Now()
	out := analysis.Analyze(BuildInput(activity, points, plan), s.thresholds)

	rec, err := newRecord(activityID, runID, out)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveAnalysis(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving analysis for %d: %w", activityID, err)
	}

	attrs := []any{
		"activity_id", activityID,
		"analysis_version", analysis.Version,
		"run_id", runID,
		"status", out.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	switch out.Status {
	case analysis.StatusSuccess:
		s.logger.Info("Analysis complete", append(attrs,
			"tier", out.Result.TierUsed,
			"confidence", out.Result.Confidence,
			"segments", len(out.Result.Segments),
		)...)
	case analysis.StatusUnavailable:
		s.logger.Info("Analysis unavailable", append(attrs, "reason", out.Reason)...)
	default:
		s.logger.Error("Analysis failed", append(attrs, "error", out.Err)...)
		s.report(out.Err, map[string]string{
			"activity_id":      strconv.FormatInt(activityID, 10),
			"analysis_version": strconv.Itoa(analysis.Version),
			"run_id":           runID,
		})
	}
	return rec, nil
}

// newRecord converts a pipeline outcome into its cache row
func newRecord(activityID int64, runID string, out analysis.Outcome) (*store.AnalysisRecord, error) {
	rec := &store.AnalysisRecord{
		ActivityID:      activityID,
		AnalysisVersion: analysis.Version,
		Status:          string(out.Status),
		Reason:          string(out.Reason),
		RunID:           runID,
		ComputedAt:      time.Now().UTC(),
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	if out.Status == analysis.StatusSuccess {
		data, err := json.Marshal(out.Result)
		if err != nil {
			return nil, fmt.Errorf("encoding result for %d: %w", activityID, err)
		}
		rec.ResultJSON = data
	}
	return rec, nil
}

// DecodeResult parses the stored result of a successful record
func DecodeResult(rec *store.AnalysisRecord) (*analysis.StreamAnalysisResult, error) {
	if analysis.Status(rec.Status) != analysis.StatusSuccess || len(rec.ResultJSON) == 0 {
		return nil, nil
	}
	var res analysis.StreamAnalysisResult
	if err := json.Unmarshal(rec.ResultJSON, &res); err != nil {
		return nil, fmt.Errorf("decoding stored result for %d: %w", rec.ActivityID, err)
	}
	return &res, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"runstream/internal/analysis"
	"runstream/internal/store"
	"runstream/internal/strava"
)

// ActivitySource is the subset of the Strava client the sync needs
type ActivitySource interface {
	GetActivities(ctx context.Context, after time.Time, page, perPage int) ([]strava.Activity, error)
	GetActivity(ctx context.Context, activityID int64) (*strava.Activity, error)
	GetActivityStreams(ctx context.Context, activityID int64) (*strava.Streams, error)
	RateLimitStatus() (shortRemaining, dailyRemaining int)
}

// SyncService orchestrates syncing data from Strava and hands stored
// streams to the analysis service
type SyncService struct {
	client   ActivitySource
	store    *store.DB
	analyzer *AnalysisService
	logger   *slog.Logger
}

// NewSyncService creates a new sync service. analyzer may be nil to only
// fetch data.
func NewSyncService(client ActivitySource, db *store.DB, analyzer *AnalysisService, logger *slog.Logger) *SyncService {
	return &SyncService{
		client:   client,
		store:    db,
		analyzer: analyzer,
		logger:   logger.With("component", "sync"),
	}
}

// SyncProgress reports progress during sync
type SyncProgress struct {
	Phase           string // "activities", "streams", "analysis"
	Total           int
	Completed       int
	CurrentActivity string
	Error           error
}

// SyncResult contains the results of a sync operation
type SyncResult struct {
	ActivitiesFetched int
	ActivitiesStored  int
	StreamsFetched    int
	StreamsMissing    int
	Analyzed          int
	Errors            []error
}

// SyncAll performs a full sync: activities -> streams -> analysis
func (s *SyncService) SyncAll(ctx context.Context, progress chan<- SyncProgress) (*SyncResult, error) {
	if progress != nil {
		defer close(progress)
	}

	result := &SyncResult{}

	// Phase 1: Sync activity summaries
	if err := s.syncActivities(ctx, progress, result); err != nil {
		return result, fmt.Errorf("syncing activities: %w", err)
	}

	// Phase 2: Fetch streams for activities that need them
	if err := s.syncStreams(ctx, progress, result); err != nil {
		return result, fmt.Errorf("syncing streams: %w", err)
	}

	// Phase 3: Analyze everything with a stored stream
	if err := s.analyzePending(ctx, progress, result); err != nil {
		return result, fmt.Errorf("analyzing streams: %w", err)
	}

	s.logger.Info("Sync finished",
		"fetched", result.ActivitiesFetched,
		"stored", result.ActivitiesStored,
		"streams", result.StreamsFetched,
		"analyzed", result.Analyzed,
		"errors", len(result.Errors),
	)
	return result, nil
}

// syncActivities fetches run summaries newer than the last sync and stores them
func (s *SyncService) syncActivities(ctx context.Context, progress chan<- SyncProgress, result *SyncResult) error {
	// Get last sync time
	lastSyncStr, err := s.store.GetSyncState(ctx, store.SyncKeyLastActivitySync)
	if err != nil {
		return fmt.Errorf("reading last sync time: %w", err)
	}
	var after time.Time
	if lastSyncStr != "" {
		after, _ = time.Parse(time.RFC3339, lastSyncStr)
	}
	started := time.Now()

	send(progress, SyncProgress{Phase: "activities"})

	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		activities, err := s.client.GetActivities(ctx, after, page, ActivitiesPageSize)
		if err != nil {
			return fmt.Errorf("fetching page %d: %w", page, err)
		}

		if len(activities) == 0 {
			break
		}

		result.ActivitiesFetched += len(activities)

		for _, a := range activities {
			if !isRun(a) {
				continue
			}
			if err := s.store.UpsertActivity(ctx, convertActivity(a)); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("storing activity %d: %w", a.ID, err))
				continue
			}
			result.ActivitiesStored++
		}

		send(progress, SyncProgress{
			Phase:     "activities",
			Total:     result.ActivitiesFetched,
			Completed: result.ActivitiesStored,
		})

		if len(activities) < ActivitiesPageSize {
			break // Last page
		}

		page++
	}

	// Update last sync time
	return s.store.SetSyncState(ctx, store.SyncKeyLastActivitySync, started.UTC().Format(time.RFC3339))
}

// syncStreams fetches raw streams, moving each activity through the
// fetching -> pending lifecycle before analysis
func (s *SyncService) syncStreams(ctx context.Context, progress chan<- SyncProgress, result *SyncResult) error {
	// Limit to batch size to respect rate limits
	activities, err := s.store.GetActivitiesNeedingStreams(ctx, StreamBatchSize)
	if err != nil {
		return fmt.Errorf("getting activities needing streams: %w", err)
	}

	if len(activities) == 0 {
		return nil
	}

	send(progress, SyncProgress{Phase: "streams", Total: len(activities)})

	for i, activity := range activities {
		if err := ctx.Err(); err != nil {
			return err
		}

		send(progress, SyncProgress{
			Phase:           "streams",
			Total:           len(activities),
			Completed:       i,
			CurrentActivity: activity.Name,
		})

		if err := s.fetchStreams(ctx, activity, result); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("activity %d (%s): %w", activity.ID, activity.Name, err))
		}
	}

	send(progress, SyncProgress{
		Phase:     "streams",
		Total:     len(activities),
		Completed: len(activities),
	})

	return nil
}

func (s *SyncService) fetchStreams(ctx context.Context, activity store.Activity, result *SyncResult) error {
	if err := s.store.SetAnalysisStatus(ctx, activity.ID, analysis.Version, string(analysis.StatusFetching)); err != nil {
		return fmt.Errorf("marking fetching: %w", err)
	}

	points, err := s.downloadStreams(ctx, activity.ID)
	if err != nil {
		// streams_synced is still 0, so the next sync retries the fetch
		if serr := s.store.SetAnalysisStatus(ctx, activity.ID, analysis.Version, string(analysis.StatusPending)); serr != nil {
			s.logger.Warn("Failed to reset status", "activity_id", activity.ID, "error", serr)
		}
		return err
	}
	return s.storeStreams(ctx, activity.ID, points, result)
}

// downloadStreams fetches and converts the streams of one activity without
// touching the store. A stream Strava does not have comes back empty.
func (s *SyncService) downloadStreams(ctx context.Context, activityID int64) ([]store.StreamPoint, error) {
	streams, err := s.client.GetActivityStreams(ctx, activityID)
	if errors.Is(err, strava.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return convertStreams(activityID, streams), nil
}

// storeStreams replaces the stored stream and queues the activity for analysis
func (s *SyncService) storeStreams(ctx context.Context, activityID int64, points []store.StreamPoint, result *SyncResult) error {
	if err := s.store.SaveStreams(ctx, activityID, points); err != nil {
		return fmt.Errorf("saving streams: %w", err)
	}
	if len(points) == 0 {
		// Nothing recorded; analysis will report no_stream
		result.StreamsMissing++
	}

	if err := s.store.MarkStreamsSynced(ctx, activityID); err != nil {
		return fmt.Errorf("marking synced: %w", err)
	}
	if err := s.store.SetAnalysisStatus(ctx, activityID, analysis.Version, string(analysis.StatusPending)); err != nil {
		return fmt.Errorf("marking pending: %w", err)
	}

	result.StreamsFetched++
	return nil
}

func (s *SyncService) analyzePending(ctx context.Context, progress chan<- SyncProgress, result *SyncResult) error {
	if s.analyzer == nil {
		return nil
	}
	send(progress, SyncProgress{Phase: "analysis"})

	batch, err := s.analyzer.ProcessPending(ctx)
	if err != nil {
		return err
	}
	result.Analyzed = batch.Processed
	result.Errors = append(result.Errors, batch.Errors...)

	if err := s.store.SetSyncState(ctx, store.SyncKeyLastAnalysisRun, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	send(progress, SyncProgress{Phase: "analysis", Total: batch.Processed, Completed: batch.Processed})
	return nil
}

// RefetchStreams refreshes the summary of one activity, downloads its stream
// again, swaps it for the stored one and recomputes the analysis. A failed
// download leaves the stored stream and analysis as they were. Manual
// activities are only reanalyzed.
func (s *SyncService) RefetchStreams(ctx context.Context, activityID int64) (*store.AnalysisRecord, error) {
	activity, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}

	if !activity.Manual {
		summary, err := s.client.GetActivity(ctx, activityID)
		switch {
		case errors.Is(err, strava.ErrNotFound):
			s.logger.Warn("Activity summary gone from Strava", "activity_id", activityID)
		case err != nil:
			return nil, fmt.Errorf("fetching summary: %w", err)
		default:
			if err := s.store.UpsertActivity(ctx, convertActivity(*summary)); err != nil {
				return nil, fmt.Errorf("storing summary: %w", err)
			}
		}

		// The stored stream and record stay untouched until a new payload is in hand
		points, err := s.downloadStreams(ctx, activityID)
		if err != nil {
			return nil, fmt.Errorf("fetching streams: %w", err)
		}
		var result SyncResult
		if err := s.storeStreams(ctx, activityID, points, &result); err != nil {
			return nil, err
		}
	}

	if s.analyzer == nil {
		return nil, errors.New("no analyzer configured")
	}
	return s.analyzer.Refresh(ctx, activityID)
}

// RateLimitStatus returns the current rate limit status from the client
func (s *SyncService) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	return s.client.RateLimitStatus()
}

func send(progress chan<- SyncProgress, p SyncProgress) {
	if progress != nil {
		progress <- p
	}
}

// isRun reports whether a summary is a running activity
func isRun(a strava.Activity) bool {
	switch a.SportType {
	case "Run", "TrailRun", "VirtualRun":
		return true
	case "":
		return a.Type == "Run"
	}
	return false
}

// convertActivity converts a Strava API activity to a store activity
func convertActivity(a strava.Activity) *store.Activity {
	activity := &store.Activity{
		ID:             a.ID,
		AthleteID:      a.Athlete.ID,
		Name:           a.Name,
		Type:           a.Type,
		StartDate:      a.StartDate,
		StartDateLocal: a.StartDateLocal,
		Distance:       a.Distance,
		MovingTime:     a.MovingTime,
		ElapsedTime:    a.ElapsedTime,
		HasHeartrate:   a.HasHeartrate,
		Manual:         a.Manual,
	}

	if a.Timezone != "" {
		activity.Timezone = &a.Timezone
	}
	if a.TotalElevationGain > 0 {
		activity.TotalElevationGain = &a.TotalElevationGain
	}
	if a.AverageSpeed > 0 {
		activity.AverageSpeed = &a.AverageSpeed
	}
	if a.MaxSpeed > 0 {
		activity.MaxSpeed = &a.MaxSpeed
	}
	if a.AverageHeartrate > 0 {
		activity.AverageHeartrate = &a.AverageHeartrate
	}
	if a.MaxHeartrate > 0 {
		activity.MaxHeartrate = &a.MaxHeartrate
	}
	if a.AverageCadence > 0 {
		activity.AverageCadence = &a.AverageCadence
	}

	return activity
}

// convertStreams converts Strava API streams to store stream points
func convertStreams(activityID int64, s *strava.Streams) []store.StreamPoint {
	if s == nil || s.Time == nil {
		return nil
	}

	length := len(s.Time.Data)
	points := make([]store.StreamPoint, length)

	for i := 0; i < length; i++ {
		p := store.StreamPoint{
			ActivityID: activityID,
			TimeOffset: s.Time.Data[i],
		}

		if s.LatLng != nil && i < len(s.LatLng.Data) {
			lat := s.LatLng.Data[i][0]
			lng := s.LatLng.Data[i][1]
			p.Lat = &lat
			p.Lng = &lng
		}

		if s.Altitude != nil && i < len(s.Altitude.Data) {
			alt := s.Altitude.Data[i]
			p.Altitude = &alt
		}

		if s.VelocitySmooth != nil && i < len(s.VelocitySmooth.Data) {
			vel := s.VelocitySmooth.Data[i]
			p.VelocitySmooth = &vel
		}

		if s.Heartrate != nil && i < len(s.Heartrate.Data) {
			hr := s.Heartrate.Data[i]
			p.Heartrate = &hr
		}

		if s.Cadence != nil && i < len(s.Cadence.Data) {
			cad := s.Cadence.Data[i]
			p.Cadence = &cad
		}

		if s.GradeSmooth != nil && i < len(s.GradeSmooth.Data) {
			grade := s.GradeSmooth.Data[i]
			p.GradeSmooth = &grade
		}

		if s.Distance != nil && i < len(s.Distance.Data) {
			dist := s.Distance.Data[i]
			p.Distance = &dist
		}

		points[i] = p
	}

	return points
}

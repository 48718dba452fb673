package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runstream/internal/analysis"
	"runstream/internal/store"
	"runstream/internal/strava"
)

type fakeSource struct {
	activities []strava.Activity
	streams    map[int64]*strava.Streams
	streamErr  map[int64]error
	pages      []int
}

func (f *fakeSource) GetActivities(_ context.Context, _ time.Time, page, perPage int) ([]strava.Activity, error) {
	f.pages = append(f.pages, page)
	start := (page - 1) * perPage
	if start >= len(f.activities) {
		return nil, nil
	}
	end := min(start+perPage, len(f.activities))
	return f.activities[start:end], nil
}

func (f *fakeSource) GetActivity(_ context.Context, id int64) (*strava.Activity, error) {
	for _, a := range f.activities {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, strava.ErrNotFound
}

func (f *fakeSource) GetActivityStreams(_ context.Context, id int64) (*strava.Streams, error) {
	if err := f.streamErr[id]; err != nil {
		return nil, err
	}
	return f.streams[id], nil
}

func (f *fakeSource) RateLimitStatus() (int, int) { return 100, 1000 }

func stravaRun(id int64, sport string) strava.Activity {
	start := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Hour)
	return strava.Activity{
		ID:             id,
		Athlete:        strava.Athlete{ID: 1},
		Name:           "Run",
		Type:           sport,
		SportType:      sport,
		StartDate:      start,
		StartDateLocal: start,
		Distance:       3000,
		MovingTime:     900,
		ElapsedTime:    900,
		HasHeartrate:   true,
	}
}

func steadyStreams(n int) *strava.Streams {
	s := &strava.Streams{
		Time:           &strava.StreamData[int]{},
		Distance:       &strava.StreamData[float64]{},
		VelocitySmooth: &strava.StreamData[float64]{},
		Heartrate:      &strava.StreamData[int]{},
		Cadence:        &strava.StreamData[int]{},
	}
	for i := 0; i < n; i++ {
		s.Time.Data = append(s.Time.Data, i)
		s.Distance.Data = append(s.Distance.Data, float64(i)*3.33)
		s.VelocitySmooth.Data = append(s.VelocitySmooth.Data, 3.33)
		s.Heartrate.Data = append(s.Heartrate.Data, 150)
		s.Cadence.Data = append(s.Cadence.Data, 87)
	}
	return s
}

func TestSyncAll(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	manual := stravaRun(3, "Run")
	manual.Manual = true
	src := &fakeSource{
		activities: []strava.Activity{
			stravaRun(1, "Run"),
			stravaRun(2, "TrailRun"),
			manual,
			stravaRun(4, "Run"),
			stravaRun(5, "Ride"),
		},
		streams: map[int64]*strava.Streams{
			1: steadyStreams(900),
		},
		streamErr: map[int64]error{
			2: strava.ErrNotFound,
			4: errors.New("API error 500: boom"),
		},
	}

	svc := NewSyncService(src, db, newTestAnalysisService(db), discardLogger())
	progress := make(chan SyncProgress, 100)
	result, err := svc.SyncAll(ctx, progress)
	require.NoError(t, err)

	var phases []string
	for p := range progress {
		if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
			phases = append(phases, p.Phase)
		}
	}
	assert.Equal(t, []string{"activities", "streams", "analysis"}, phases)

	assert.Equal(t, 5, result.ActivitiesFetched)
	assert.Equal(t, 4, result.ActivitiesStored, "rides are skipped")
	assert.Equal(t, 2, result.StreamsFetched)
	assert.Equal(t, 1, result.StreamsMissing)
	assert.Equal(t, 3, result.Analyzed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error(), "boom")

	status := func(id int64) *store.AnalysisRecord {
		rec, err := db.GetAnalysis(ctx, id, analysis.Version)
		require.NoError(t, err)
		return rec
	}
	assert.Equal(t, string(analysis.StatusSuccess), status(1).Status)
	assert.Equal(t, string(analysis.ReasonNoStream), status(2).Reason)
	assert.Equal(t, string(analysis.ReasonManual), status(3).Reason)
	// Failed fetches stay pending for the next sync
	assert.Equal(t, string(analysis.StatusPending), status(4).Status)

	need, err := db.GetActivitiesNeedingStreams(ctx, 10)
	require.NoError(t, err)
	require.Len(t, need, 1)
	assert.Equal(t, int64(4), need[0].ID)

	last, err := db.GetSyncState(ctx, store.SyncKeyLastActivitySync)
	require.NoError(t, err)
	assert.NotEmpty(t, last)
}

func TestRefetchStreams(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	createTestActivity(t, db, 1, false)
	storeStreams(t, db, 1, steadyPoints(1, 120))

	renamed := stravaRun(1, "Run")
	renamed.Name = "Tempo Tuesday"
	src := &fakeSource{
		activities: []strava.Activity{renamed},
		streams:    map[int64]*strava.Streams{1: steadyStreams(900)},
	}
	svc := NewSyncService(src, db, newTestAnalysisService(db), discardLogger())

	rec, err := svc.RefetchStreams(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, string(analysis.StatusSuccess), rec.Status)

	activity, err := db.GetActivity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Tempo Tuesday", activity.Name)

	points, err := db.GetStreams(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, points, 900)

	// A stream Strava no longer has leaves nothing behind
	src.streamErr = map[int64]error{1: strava.ErrNotFound}
	rec, err = svc.RefetchStreams(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, string(analysis.ReasonNoStream), rec.Reason)

	has, err := db.HasStreams(ctx, 1)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = svc.RefetchStreams(ctx, 99)
	assert.ErrorIs(t, err, store.ErrActivityNotFound)
}

func TestRefetchStreams_FailedDownloadKeepsAnalysis(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	createTestActivity(t, db, 1, false)
	storeStreams(t, db, 1, steadyPoints(1, 900))

	analyzer := newTestAnalysisService(db)
	rec, err := analyzer.Process(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, string(analysis.StatusSuccess), rec.Status)

	src := &fakeSource{
		activities: []strava.Activity{stravaRun(1, "Run")},
		streamErr:  map[int64]error{1: errors.New("API error 503: unavailable")},
	}
	svc := NewSyncService(src, db, analyzer, discardLogger())

	_, err = svc.RefetchStreams(ctx, 1)
	require.Error(t, err)

	points, err := db.GetStreams(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, points, 900, "stored stream survives a failed download")

	rec, err = db.GetAnalysis(ctx, 1, analysis.Version)
	require.NoError(t, err)
	assert.Equal(t, string(analysis.StatusSuccess), rec.Status)

	// A later sync with Strava healthy again does not degrade the record
	src.streamErr = nil
	src.streams = map[int64]*strava.Streams{1: steadyStreams(900)}
	_, err = svc.SyncAll(ctx, nil)
	require.NoError(t, err)

	rec, err = db.GetAnalysis(ctx, 1, analysis.Version)
	require.NoError(t, err)
	assert.Equal(t, string(analysis.StatusSuccess), rec.Status)
	assert.Empty(t, rec.Reason)
}

func TestSyncAll_FailedFetchIsRetried(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	src := &fakeSource{
		activities: []strava.Activity{stravaRun(1, "Run")},
		streamErr:  map[int64]error{1: errors.New("API error 502: bad gateway")},
	}
	svc := NewSyncService(src, db, newTestAnalysisService(db), discardLogger())

	result, err := svc.SyncAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)

	src.streamErr = nil
	src.streams = map[int64]*strava.Streams{1: steadyStreams(900)}
	result, err = svc.SyncAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.StreamsFetched)

	rec, err := db.GetAnalysis(ctx, 1, analysis.Version)
	require.NoError(t, err)
	assert.Equal(t, string(analysis.StatusSuccess), rec.Status)
}

func TestIsRun(t *testing.T) {
	assert.True(t, isRun(strava.Activity{SportType: "VirtualRun"}))
	assert.True(t, isRun(strava.Activity{Type: "Run"}))
	assert.False(t, isRun(strava.Activity{SportType: "Ride", Type: "Ride"}))
}

func TestConvertStreams(t *testing.T) {
	s := steadyStreams(3)
	s.LatLng = &strava.StreamData[[2]float64]{Data: [][2]float64{{51.5, -0.1}}}

	points := convertStreams(7, s)
	require.Len(t, points, 3)
	assert.Equal(t, int64(7), points[0].ActivityID)
	require.NotNil(t, points[0].Lat)
	assert.Equal(t, 51.5, *points[0].Lat)
	assert.Nil(t, points[1].Lat, "shorter streams leave later points empty")
	assert.Equal(t, 87, *points[2].Cadence)

	assert.Nil(t, convertStreams(7, nil))
}

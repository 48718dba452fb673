package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory database with two run activities
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, a := range []Activity{
		testActivity(1, "Test Run", time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)),
		testActivity(2, "Another Run", time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)),
	} {
		require.NoError(t, db.UpsertActivity(ctx, &a))
	}
	return db
}

func testActivity(id int64, name string, start time.Time) Activity {
	return Activity{
		ID:             id,
		AthleteID:      123,
		Name:           name,
		Type:           "Run",
		StartDate:      start,
		StartDateLocal: start,
		Distance:       5000,
		MovingTime:     1500,
		ElapsedTime:    1600,
		HasHeartrate:   true,
	}
}

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int { return &v }

func TestActivities(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a, err := db.GetActivity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Test Run", a.Name)
	assert.True(t, a.HasHeartrate)
	assert.False(t, a.Manual)
	assert.Nil(t, a.AverageHeartrate)

	_, err = db.GetActivity(ctx, 99)
	assert.ErrorIs(t, err, ErrActivityNotFound)

	list, err := db.ListActivityStatuses(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID, "newest first")
	assert.Empty(t, list[0].Status)

	count, err := db.CountActivities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, db.MarkStreamsSynced(ctx, 1))
	assert.ErrorIs(t, db.MarkStreamsSynced(ctx, 99), ErrActivityNotFound)

	pending, err := db.GetActivitiesNeedingStreams(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].ID)
}

func TestStreams(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	points := []StreamPoint{
		{TimeOffset: 0, Distance: ptrF(0), Heartrate: ptrI(120)},
		{TimeOffset: 1, Distance: ptrF(3.1), Heartrate: ptrI(121), Lat: ptrF(51.5), Lng: ptrF(-0.12)},
		{TimeOffset: 2, Distance: ptrF(6.3)},
	}
	require.NoError(t, db.SaveStreams(ctx, 1, points))

	got, err := db.GetStreams(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].ActivityID)
	assert.Equal(t, 121, *got[1].Heartrate)
	assert.Nil(t, got[2].Heartrate)
	assert.InDelta(t, 51.5, *got[1].Lat, 1e-9)

	// Saving again replaces the old stream
	require.NoError(t, db.SaveStreams(ctx, 1, points[:1]))
	got, err = db.GetStreams(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	has, err := db.HasStreams(ctx, 2)
	require.NoError(t, err)
	assert.False(t, has)

	// An empty payload clears it
	require.NoError(t, db.SaveStreams(ctx, 1, nil))
	has, err = db.HasStreams(ctx, 1)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestPlannedWorkouts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetPlannedWorkout(ctx, 1)
	assert.ErrorIs(t, err, ErrPlanNotFound)

	plan := &PlannedWorkout{ActivityID: 1, PlannedDurationMin: ptrF(45), PlannedIntervalCount: ptrI(8)}
	require.NoError(t, db.SavePlannedWorkout(ctx, plan))

	got, err := db.GetPlannedWorkout(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, *got.PlannedIntervalCount)
	assert.Nil(t, got.PlannedDistanceKm)

	require.NoError(t, db.DeletePlannedWorkout(ctx, 1))
	_, err = db.GetPlannedWorkout(ctx, 1)
	assert.ErrorIs(t, err, ErrPlanNotFound)
	assert.ErrorIs(t, db.DeletePlannedWorkout(ctx, 1), ErrPlanNotFound)
}

func TestAnalysisResults(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetAnalysis(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrAnalysisNotFound)

	require.NoError(t, db.SetAnalysisStatus(ctx, 1, 1, "fetching"))
	rec, err := db.GetAnalysis(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "fetching", rec.Status)
	assert.Nil(t, rec.ResultJSON)

	require.NoError(t, db.SaveAnalysis(ctx, &AnalysisRecord{
		ActivityID:      1,
		AnalysisVersion: 1,
		Status:          "success",
		RunID:           "run-1",
		ResultJSON:      []byte(`{"activity_id":1}`),
	}))
	rec, err = db.GetAnalysis(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "success", rec.Status)
	assert.Equal(t, "run-1", rec.RunID)
	assert.JSONEq(t, `{"activity_id":1}`, string(rec.ResultJSON))
	assert.False(t, rec.ComputedAt.IsZero())

	// Other versions are separate cache entries
	_, err = db.GetAnalysis(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrAnalysisNotFound)

	// A status reset drops the stored result
	require.NoError(t, db.SetAnalysisStatus(ctx, 1, 1, "pending"))
	rec, err = db.GetAnalysis(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "pending", rec.Status)
	assert.Nil(t, rec.ResultJSON)
	assert.Empty(t, rec.RunID)

	counts, err := db.CountAnalysesByStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"pending": 1}, counts)
}

func TestActivitiesNeedingAnalysis(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	manual := testActivity(3, "Treadmill log", time.Date(2024, 1, 25, 7, 0, 0, 0, time.UTC))
	manual.Manual = true
	require.NoError(t, db.UpsertActivity(ctx, &manual))
	require.NoError(t, db.MarkStreamsSynced(ctx, 1))
	require.NoError(t, db.MarkStreamsSynced(ctx, 2))

	require.NoError(t, db.SaveAnalysis(ctx, &AnalysisRecord{ActivityID: 2, AnalysisVersion: 1, Status: "success"}))
	require.NoError(t, db.SetAnalysisStatus(ctx, 1, 1, "pending"))

	need, err := db.GetActivitiesNeedingAnalysis(ctx, 1)
	require.NoError(t, err)
	var ids []int64
	for _, a := range need {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []int64{3, 1}, ids)

	// A version bump makes everything stale
	need, err = db.GetActivitiesNeedingAnalysis(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, need, 3)

	deleted, err := db.DeleteStaleAnalyses(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	statuses, err := db.ListActivityStatuses(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	for _, s := range statuses {
		assert.Empty(t, s.Status)
	}
}

func TestAuth(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetAuth(ctx)
	assert.ErrorIs(t, err, ErrNoAuth)

	expires := time.Unix(1700000000, 0)
	require.NoError(t, db.SaveAuth(ctx, &Auth{AthleteID: 7, AccessToken: "access", RefreshToken: "refresh", ExpiresAt: expires}))
	require.NoError(t, db.SaveAuth(ctx, &Auth{AthleteID: 7, AccessToken: "access2", RefreshToken: "refresh2", ExpiresAt: expires.Add(time.Hour)}))

	auth, err := db.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), auth.AthleteID)
	assert.Equal(t, "access2", auth.AccessToken)
	assert.True(t, auth.ExpiresAt.Equal(expires.Add(time.Hour)))
}

func TestSyncState(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	v, err := db.GetSyncState(ctx, SyncKeyLastActivitySync)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetSyncState(ctx, SyncKeyLastActivitySync, "1700000000"))
	require.NoError(t, db.SetSyncState(ctx, SyncKeyLastActivitySync, "1700000100"))
	v, err = db.GetSyncState(ctx, SyncKeyLastActivitySync)
	require.NoError(t, err)
	assert.Equal(t, "1700000100", v)
}

func TestListActivityStatuses_ResultSummary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveAnalysis(ctx, &AnalysisRecord{
		ActivityID:      1,
		AnalysisVersion: 1,
		Status:          "success",
		ResultJSON:      []byte(`{"tier_used":"tier2","confidence":0.8}`),
	}))
	require.NoError(t, db.SaveAnalysis(ctx, &AnalysisRecord{
		ActivityID:      2,
		AnalysisVersion: 1,
		Status:          "unavailable",
		Reason:          "no_stream",
	}))

	statuses, err := db.ListActivityStatuses(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	// Newest first: activity 2 (Jan 20) then 1 (Jan 15)
	assert.Equal(t, "unavailable", statuses[0].Status)
	assert.Nil(t, statuses[0].Tier)
	assert.Nil(t, statuses[0].Confidence)

	assert.Equal(t, "success", statuses[1].Status)
	require.NotNil(t, statuses[1].Tier)
	assert.Equal(t, "tier2", *statuses[1].Tier)
	require.NotNil(t, statuses[1].Confidence)
	assert.InDelta(t, 0.8, *statuses[1].Confidence, 1e-9)
}

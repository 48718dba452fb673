package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"runstream/internal/analysis"
	"runstream/internal/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAnalysisService(db *store.DB) *AnalysisService {
	return NewAnalysisService(db, analysis.DefaultThresholds(), 2, discardLogger(), nil)
}

func createTestActivity(t *testing.T, db *store.DB, id int64, manual bool) {
	t.Helper()
	start := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Hour)
	require.NoError(t, db.UpsertActivity(context.Background(), &store.Activity{
		ID:             id,
		AthleteID:      1,
		Name:           "Morning Run",
		Type:           "Run",
		StartDate:      start,
		StartDateLocal: start,
		Distance:       6000,
		MovingTime:     1800,
		ElapsedTime:    1800,
		HasHeartrate:   true,
		Manual:         manual,
	}))
}

// steadyPoints is a 1 Hz run at 3.33 m/s with constant HR and cadence
func steadyPoints(activityID int64, n int) []store.StreamPoint {
	points := make([]store.StreamPoint, n)
	for i := range points {
		vel := 1000.0 / 300
		dist := float64(i) * vel
		hr := 150
		cad := 87
		alt := 20.0
		points[i] = store.StreamPoint{
			ActivityID:     activityID,
			TimeOffset:     i,
			VelocitySmooth: &vel,
			Distance:       &dist,
			Heartrate:      &hr,
			Cadence:        &cad,
			Altitude:       &alt,
		}
	}
	return points
}

func storeStreams(t *testing.T, db *store.DB, id int64, points []store.StreamPoint) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.SaveStreams(ctx, id, points))
	require.NoError(t, db.MarkStreamsSynced(ctx, id))
}

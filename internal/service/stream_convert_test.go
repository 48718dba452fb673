package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runstream/internal/store"
)

func TestBuildInput_Conversions(t *testing.T) {
	a := &store.Activity{ID: 9, HasHeartrate: true}
	points := steadyPoints(9, 3)
	stopped := 0.3
	points[1].VelocitySmooth = &stopped

	in := BuildInput(a, points, nil)
	require.Len(t, in.Samples, 3)
	assert.Equal(t, int64(9), in.ActivityID)
	assert.Nil(t, in.Plan)

	s := in.Samples[0]
	require.NotNil(t, s.CadenceSPM)
	assert.Equal(t, 174.0, *s.CadenceSPM)
	require.NotNil(t, s.PaceSPerKm)
	assert.InDelta(t, 300, *s.PaceSPerKm, 1e-9)
	assert.Nil(t, in.Samples[1].PaceSPerKm, "stopped samples carry no pace")

	require.NotNil(t, in.Channels)
	assert.True(t, in.Channels.HR)
	assert.True(t, in.Channels.Cadence)
	assert.True(t, in.Channels.Altitude)
	assert.True(t, in.Channels.GPS)
}

func TestBuildInput_Manual(t *testing.T) {
	in := BuildInput(&store.Activity{ID: 1, Manual: true}, nil, nil)
	assert.Empty(t, in.Samples)
	require.NotNil(t, in.Channels)
	assert.True(t, in.Channels.Manual)
}

func TestBuildInput_Plan(t *testing.T) {
	count := 8
	in := BuildInput(&store.Activity{ID: 1}, nil, &store.PlannedWorkout{ActivityID: 1, PlannedIntervalCount: &count})
	require.NotNil(t, in.Plan)
	assert.Equal(t, 8, *in.Plan.PlannedIntervalCount)
	assert.Nil(t, in.Plan.PlannedDistanceKm)
}

func TestCumulativeDistance(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	t.Run("carries recorded distance forward", func(t *testing.T) {
		points := []store.StreamPoint{
			{Distance: f(0)}, {Distance: f(5)}, {}, {Distance: f(12)},
		}
		assert.Equal(t, []float64{0, 5, 5, 12}, cumulativeDistance(points))
	})

	t.Run("integrates lat/lng without a distance stream", func(t *testing.T) {
		points := []store.StreamPoint{
			{Lat: f(51.5), Lng: f(-0.1)},
			{Lat: f(51.501), Lng: f(-0.1)},
			{},
			{Lat: f(51.502), Lng: f(-0.1)},
		}
		got := cumulativeDistance(points)
		// 0.001 degree of latitude is ~111.2 m
		assert.Equal(t, 0.0, got[0])
		assert.InDelta(t, 111.2, got[1], 0.2)
		assert.Equal(t, got[1], got[2])
		assert.InDelta(t, 222.4, got[3], 0.4)
	})

	t.Run("no position data stays at zero", func(t *testing.T) {
		assert.Equal(t, []float64{0, 0}, cumulativeDistance(make([]store.StreamPoint, 2)))
	})
}

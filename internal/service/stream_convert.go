package service

import (
	"math"

	"runstream/internal/analysis"
	"runstream/internal/geo"
	"runstream/internal/store"
)

// BuildInput turns stored stream points into the engine's input contract.
// Cadence is doubled to steps per minute, velocity becomes pace and distance
// falls back to the GPS track when no distance stream was recorded.
func BuildInput(a *store.Activity, points []store.StreamPoint, plan *store.PlannedWorkout) analysis.Input {
	in := analysis.Input{
		ActivityID: a.ID,
		Plan:       convertPlan(plan),
	}
	meta := &analysis.ChannelMetadata{Manual: a.Manual, HR: a.HasHeartrate}
	in.Channels = meta
	if a.Manual || len(points) == 0 {
		return in
	}

	distances := cumulativeDistance(points)
	in.Samples = make([]analysis.StreamSample, len(points))
	for i, p := range points {
		s := analysis.StreamSample{
			TimeS:     float64(p.TimeOffset),
			DistanceM: distances[i],
		}
		if p.VelocitySmooth != nil && *p.VelocitySmooth > MinSpeedForPace {
			pace := 1000 / *p.VelocitySmooth
			s.PaceSPerKm = &pace
		}
		if p.Heartrate != nil {
			hr := float64(*p.Heartrate)
			s.HR = &hr
			meta.HR = true
		}
		if p.Cadence != nil {
			spm := float64(*p.Cadence) * StravaCadenceMultiplier
			s.CadenceSPM = &spm
			meta.Cadence = true
		}
		if p.Altitude != nil {
			alt := *p.Altitude
			s.AltitudeM = &alt
			meta.Altitude = true
		}
		if p.GradeSmooth != nil {
			g := *p.GradeSmooth
			s.Grade = &g
		}
		if p.Lat != nil || p.Distance != nil {
			meta.GPS = true
		}
		in.Samples[i] = s
	}
	return in
}

// cumulativeDistance prefers the recorded distance stream. Gaps carry the
// last value forward; with no distance stream at all the lat/lng track is
// integrated on the sphere. Without either, distance stays zero.
func cumulativeDistance(points []store.StreamPoint) []float64 {
	out := make([]float64, len(points))

	hasDistance := false
	for _, p := range points {
		if p.Distance != nil {
			hasDistance = true
			break
		}
	}

	if hasDistance {
		last := 0.0
		for i, p := range points {
			if p.Distance != nil && !math.IsNaN(*p.Distance) {
				last = *p.Distance
			}
			out[i] = last
		}
		return out
	}

	var track geo.Track
	for i, p := range points {
		if p.Lat != nil && p.Lng != nil {
			track.Add(*p.Lat, *p.Lng)
		}
		out[i] = track.Total
	}
	return out
}

func convertPlan(p *store.PlannedWorkout) *analysis.PrescribedWorkout {
	if p == nil {
		return nil
	}
	return &analysis.PrescribedWorkout{
		PlannedDurationMin:   p.PlannedDurationMin,
		PlannedDistanceKm:    p.PlannedDistanceKm,
		PlannedPaceSKm:       p.PlannedPaceSKm,
		PlannedIntervalCount: p.PlannedIntervalCount,
	}
}

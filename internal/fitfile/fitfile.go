// Package fitfile turns Garmin FIT activity files into analysis input.
package fitfile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/tormoder/fit"

	"runstream/internal/analysis"
	"runstream/internal/geo"
)

// ErrNoRecords is returned for FIT files that carry no timestamped records
var ErrNoRecords = errors.New("fit file has no records")

// minSpeedForPace matches the Strava stream conversion: slower than this is
// treated as standing still and carries no pace
const minSpeedForPace = 0.5

// Activity is a decoded FIT recording
type Activity struct {
	StartTime time.Time
	Sport     string
	Input     analysis.Input
}

// Decode parses a FIT activity file. FIT cadence is single-leg for running
// and is doubled to steps per minute.
func Decode(r io.Reader) (*Activity, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}
	act, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("fit activity: %w", err)
	}

	out := &Activity{Sport: "unknown"}
	if len(act.Sessions) > 0 {
		out.Sport = fmt.Sprint(act.Sessions[0].Sport)
	}

	samples, meta, start := convertRecords(act.Records)
	if len(samples) == 0 {
		return nil, ErrNoRecords
	}
	out.StartTime = start
	out.Input = analysis.Input{Samples: samples, Channels: &meta}
	return out, nil
}

func convertRecords(records []*fit.RecordMsg) ([]analysis.StreamSample, analysis.ChannelMetadata, time.Time) {
	var (
		samples []analysis.StreamSample
		meta    analysis.ChannelMetadata
		start   time.Time
		track   geo.Track
		lastD   float64
		hasDist bool
	)

	for _, rec := range records {
		if rec == nil || rec.Timestamp.IsZero() || fit.IsBaseTime(rec.Timestamp) {
			continue
		}
		if start.IsZero() {
			start = rec.Timestamp
		}

		s := analysis.StreamSample{TimeS: rec.Timestamp.Sub(start).Seconds()}

		if !rec.PositionLat.Invalid() && !rec.PositionLong.Invalid() {
			track.Add(rec.PositionLat.Degrees(), rec.PositionLong.Degrees())
		}
		if d := rec.GetDistanceScaled(); finite(d) {
			lastD = d
			hasDist = true
		}
		if hasDist {
			s.DistanceM = lastD
		} else {
			s.DistanceM = track.Total
		}

		speed := rec.GetEnhancedSpeedScaled()
		if !finite(speed) {
			speed = rec.GetSpeedScaled()
		}
		if finite(speed) && speed > minSpeedForPace {
			s.PaceSPerKm = ptr(1000 / speed)
		}

		if rec.HeartRate != math.MaxUint8 && rec.HeartRate > 0 {
			s.HR = ptr(float64(rec.HeartRate))
			meta.HR = true
		}
		if rec.Cadence != math.MaxUint8 && rec.Cadence > 0 {
			s.CadenceSPM = ptr(float64(rec.Cadence) * 2)
			meta.Cadence = true
		}

		alt := rec.GetEnhancedAltitudeScaled()
		if !finite(alt) {
			alt = rec.GetAltitudeScaled()
		}
		if finite(alt) {
			s.AltitudeM = ptr(alt)
			meta.Altitude = true
		}
		if g := rec.GetGradeScaled(); finite(g) {
			s.Grade = ptr(g)
		}

		samples = append(samples, s)
	}

	if len(samples) > 1 {
		meta.GPS = samples[len(samples)-1].DistanceM > samples[0].DistanceM
	}
	return samples, meta, start
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func ptr(v float64) *float64 { return &v }

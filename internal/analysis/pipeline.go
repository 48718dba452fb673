package analysis

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvariant marks a result discarded by the final consistency checks.
var ErrInvariant = errors.New("analysis invariant violated")

func unavailable(r UnavailableReason) Outcome {
	return Outcome{Status: StatusUnavailable, Reason: r}
}

// Analyze runs the whole pipeline for one activity. It is a pure function of
// its arguments: the same input always yields the same outcome. Missing data
// degrades to an unavailable outcome; internal faults are recovered here and
// reported as StatusError with the cause in Err.
func Analyze(in Input, th Thresholds) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Status: StatusError, Err: fmt.Errorf("analysis panic: %v", r)}
		}
	}()

	if in.Channels != nil && in.Channels.Manual {
		return unavailable(ReasonManual)
	}
	if len(in.Samples) == 0 {
		return unavailable(ReasonNoStream)
	}

	samples, repaired, ok := sanitize(in.Samples, th)
	if !ok {
		return unavailable(ReasonNonMonotonic)
	}
	if len(samples) == 0 {
		return unavailable(ReasonNoStream)
	}
	n := len(samples)
	if samples[n-1].DistanceM-samples[0].DistanceM <= 0 {
		return unavailable(ReasonNoDistance)
	}
	if n < th.MinSamples || samples[n-1].TimeS-samples[0].TimeS < th.MinDurationS {
		return unavailable(ReasonTooShort)
	}

	flags := []EstimatedFlag{}
	if repaired {
		flags = append(flags, FlagTimeSanitized)
	}
	decimated := false
	if th.MaxInputSamples > 0 && n > th.MaxInputSamples {
		samples = decimate(samples, th.MaxInputSamples)
		n = len(samples)
		decimated = true
		flags = append(flags, FlagInputDecimated)
	}

	q := classify(samples, in.Channels, th)
	dropAbsentChannels(samples, q)
	if derivePace(samples, th) {
		flags = append(flags, FlagPaceDerived)
	}
	if q.present[ChannelAltitude] && deriveGrade(samples, th) {
		flags = append(flags, FlagGradeDerived)
	}

	e := computeEffort(samples, th)
	spans := segment(samples, e, th)
	segments := buildSegments(samples, spans)
	present, missing := q.channelLists()
	crossRun := (q.tier == Tier1 || q.tier == Tier2) && q.present[ChannelHR] &&
		q.confidence >= th.CrossRunMinConfidence && !decimated

	res := &StreamAnalysisResult{
		ActivityID:         in.ActivityID,
		AnalysisVersion:    Version,
		Segments:           segments,
		Drift:              analyzeDrift(samples, e, spans, q, th),
		Moments:            detectMoments(samples, e, spans, q, th),
		PlanComparison:     comparePlan(in.Plan, samples, segments),
		ChannelsPresent:    present,
		ChannelsMissing:    missing,
		PointCount:         n,
		Confidence:         q.confidence,
		TierUsed:           q.tier,
		EstimatedFlags:     flags,
		CrossRunComparable: crossRun,
		EffortIntensity:    e.intensity(),
	}
	res.Series = buildSeries(samples, e, th.VisualizationPoints, th)
	res.Thumbnail = buildSeries(samples, e, th.ThumbnailPoints, th)

	if err := validate(res, samples, in.Plan != nil); err != nil {
		return Outcome{Status: StatusError, Err: err}
	}
	return Outcome{Status: StatusSuccess, Result: res}
}

// dropAbsentChannels clears readings of channels judged unusable so no
// metric is computed from a fragment of them.
func dropAbsentChannels(samples []StreamSample, q quality) {
	for i := range samples {
		if !q.present[ChannelHR] {
			samples[i].HR = nil
		}
		if !q.present[ChannelCadence] {
			samples[i].CadenceSPM = nil
		}
		if !q.present[ChannelAltitude] {
			samples[i].AltitudeM = nil
			samples[i].Grade = nil
		}
	}
}

// buildSeries downsamples time against smoothed speed to k points.
func buildSeries(samples []StreamSample, e effortSeries, k int, th Thresholds) []SeriesPoint {
	x := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.TimeS
	}
	intensity := e.intensity()
	idx := LTTB(x, e.speed, k)
	out := make([]SeriesPoint, len(idx))
	for j, i := range idx {
		p := SeriesPoint{
			Index:     i,
			TimeS:     samples[i].TimeS,
			DistanceM: samples[i].DistanceM,
			HR:        e.hr[i],
			Effort:    intensity[i],
		}
		if e.speed[i] >= th.MinMovingSpeedMPS {
			p.PaceSPerKm = ptr(1000 / e.speed[i])
		}
		out[j] = p
	}
	return out
}

// validate fails closed on any inconsistency in an assembled result.
func validate(r *StreamAnalysisResult, samples []StreamSample, hasPlan bool) error {
	n := len(samples)
	if r.PointCount != n {
		return fmt.Errorf("%w: point count %d, want %d", ErrInvariant, r.PointCount, n)
	}
	if len(r.Segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvariant)
	}
	if r.Segments[0].StartIndex != 0 {
		return fmt.Errorf("%w: first segment starts at %d", ErrInvariant, r.Segments[0].StartIndex)
	}
	if last := r.Segments[len(r.Segments)-1]; last.EndIndex != n-1 {
		return fmt.Errorf("%w: last segment ends at %d, want %d", ErrInvariant, last.EndIndex, n-1)
	}
	var sum float64
	for i, s := range r.Segments {
		if s.StartIndex > s.EndIndex {
			return fmt.Errorf("%w: segment %d is inverted", ErrInvariant, i)
		}
		if i > 0 && s.StartIndex != r.Segments[i-1].EndIndex+1 {
			return fmt.Errorf("%w: segment %d does not follow segment %d", ErrInvariant, i, i-1)
		}
		sum += s.DurationS
	}
	total := samples[n-1].TimeS - samples[0].TimeS
	if math.Abs(sum-total) > 1e-6*math.Max(1, total) {
		return fmt.Errorf("%w: segment durations sum to %f, want %f", ErrInvariant, sum, total)
	}

	if !isFinite(r.Confidence) || r.Confidence < 0 || r.Confidence > tierCap(r.TierUsed) {
		return fmt.Errorf("%w: confidence %f for %s", ErrInvariant, r.Confidence, r.TierUsed)
	}
	if len(r.EffortIntensity) != n {
		return fmt.Errorf("%w: %d intensities for %d points", ErrInvariant, len(r.EffortIntensity), n)
	}
	for i, v := range r.EffortIntensity {
		if !isFinite(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: intensity[%d] = %f", ErrInvariant, i, v)
		}
	}
	for i, m := range r.Moments {
		if !m.Type.Valid() {
			return fmt.Errorf("%w: moment %d has type %q", ErrInvariant, i, m.Type)
		}
		if m.Context != nil && !m.Context.Valid() {
			return fmt.Errorf("%w: moment %d has context %q", ErrInvariant, i, *m.Context)
		}
		if m.Index < 0 || m.Index >= n {
			return fmt.Errorf("%w: moment %d index %d out of range", ErrInvariant, i, m.Index)
		}
	}
	if hasPlan != (r.PlanComparison != nil) {
		return fmt.Errorf("%w: plan comparison presence mismatch", ErrInvariant)
	}
	for _, series := range [][]SeriesPoint{r.Series, r.Thumbnail} {
		for i := 1; i < len(series); i++ {
			if series[i].TimeS <= series[i-1].TimeS {
				return fmt.Errorf("%w: series time not increasing at %d", ErrInvariant, i)
			}
		}
	}
	return nil
}

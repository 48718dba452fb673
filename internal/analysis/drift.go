package analysis

import "gonum.org/v1/gonum/stat"

// bodyRange returns the index range left after dropping warmup and cooldown.
// ok is false when nothing is left.
func bodyRange(spans []span) (from, to int, ok bool) {
	from, to = -1, -1
	for _, s := range spans {
		if s.typ == SegmentWarmup || s.typ == SegmentCooldown {
			continue
		}
		if from < 0 {
			from = s.start
		}
		to = s.end
	}
	return from, to, from >= 0
}

// analyzeDrift compares the first and second half of the run body by elapsed
// time. Every metric is nil when its channel is missing or the body is too
// short to split.
func analyzeDrift(samples []StreamSample, e effortSeries, spans []span, q quality, th Thresholds) DriftAnalysis {
	var d DriftAnalysis
	from, to, ok := bodyRange(spans)
	if !ok {
		return d
	}
	if samples[to].TimeS-samples[from].TimeS < th.MinDriftBodyS {
		return d
	}

	// Split into halves
	mid := from
	half := (samples[from].TimeS + samples[to].TimeS) / 2
	for mid <= to && samples[mid].TimeS < half {
		mid++
	}
	if mid <= from || mid > to {
		return d
	}

	p1 := halfPace(samples, from, mid)
	p2 := halfPace(samples, mid, to)
	if p1 > 0 && p2 > 0 {
		// Positive = second half slower
		d.PacePct = ptr((p2/p1 - 1) * 100)
	}

	if q.present[ChannelHR] {
		ef1 := halfEF(samples, e, from, mid-1, th)
		ef2 := halfEF(samples, e, mid, to, th)
		if ef1 > 0 && ef2 > 0 {
			// Positive = second half less efficient
			d.CardiacPct = ptr((ef1/ef2 - 1) * 100)
		}
	}

	if q.present[ChannelCadence] {
		d.CadenceTrendBpmPerKm = cadenceTrend(samples, from, to, th)
	}
	return d
}

// halfPace is elapsed time over distance between two sample indices, s/km.
func halfPace(samples []StreamSample, from, to int) float64 {
	dt := samples[to].TimeS - samples[from].TimeS
	dd := samples[to].DistanceM - samples[from].DistanceM
	if dt <= 0 || dd <= 0 {
		return 0
	}
	return dt / (dd / 1000)
}

// halfEF is the efficiency factor (mean moving speed / mean HR) over
// [from, to], using only samples that are moving with a plausible HR.
func halfEF(samples []StreamSample, e effortSeries, from, to int, th Thresholds) float64 {
	var speed, hr []float64
	for i := from; i <= to; i++ {
		h := samples[i].HR
		if h == nil || *h < th.MinValidHR || *h > th.MaxValidHR {
			continue
		}
		if e.speed[i] < th.MinMovingSpeedMPS {
			continue
		}
		speed = append(speed, e.speed[i])
		hr = append(hr, *h)
	}
	if len(speed) == 0 {
		return 0
	}
	meanHR := stat.Mean(hr, nil)
	if meanHR <= 0 {
		return 0
	}
	return stat.Mean(speed, nil) / meanHR
}

// cadenceTrend is the least-squares slope of cadence against distance in km.
func cadenceTrend(samples []StreamSample, from, to int, th Thresholds) *float64 {
	var xs, ys []float64
	for i := from; i <= to; i++ {
		if c := samples[i].CadenceSPM; c != nil {
			xs = append(xs, samples[i].DistanceM/1000)
			ys = append(ys, *c)
		}
	}
	if len(xs) < 2 || (xs[len(xs)-1]-xs[0])*1000 < th.MinRegressionDistanceM {
		return nil
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return ptr(slope)
}

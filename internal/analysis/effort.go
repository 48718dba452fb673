package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// effortSeries holds the smoothed channels and the per-sample effort metric
// every later stage works from.
type effortSeries struct {
	speed   []float64  // median-smoothed speed, m/s; 0 while stopped
	gap     []float64  // grade-adjusted speed, m/s
	hr      []*float64 // median-smoothed heart rate
	cadence []*float64 // median-smoothed cadence
	grade   []*float64 // median-smoothed grade, percent
	z       []float64  // effort z-score within this run
	flat    bool       // no usable spread, every z is 0
}

// intensity maps the clipped z-score linearly onto [0, 1].
func (e effortSeries) intensity() []float64 {
	out := make([]float64, len(e.z))
	for i, z := range e.z {
		out[i] = (clamp(z, -3, 3) + 3) / 6
	}
	return out
}

func computeEffort(samples []StreamSample, th Thresholds) effortSeries {
	n := len(samples)
	raw := make([]float64, n)
	for i, s := range samples {
		if s.PaceSPerKm != nil {
			raw[i] = 1000 / *s.PaceSPerKm
		}
	}

	e := effortSeries{
		speed:   movingMedian(samples, raw, th.MedianWindowS),
		hr:      smoothOptional(samples, func(s StreamSample) *float64 { return s.HR }, th.MedianWindowS),
		cadence: smoothOptional(samples, func(s StreamSample) *float64 { return s.CadenceSPM }, th.MedianWindowS),
		grade:   smoothOptional(samples, func(s StreamSample) *float64 { return s.Grade }, th.MedianWindowS),
		gap:     make([]float64, n),
		z:       make([]float64, n),
	}

	for i := range e.speed {
		e.gap[i] = e.speed[i] * gradeFactor(e.grade[i], th)
	}

	mean, std := stat.MeanStdDev(e.gap, nil)
	spread := std
	if floor := mean * th.MinEffortCV; spread < floor {
		spread = floor
	}
	if !isFinite(mean) || !isFinite(spread) || spread <= 0 {
		e.flat = true
		return e
	}
	for i, v := range e.gap {
		e.z[i] = (v - mean) / spread
	}
	return e
}

// gradeFactor scales speed so climbing counts as harder work than the same
// speed on the flat.
func gradeFactor(grade *float64, th Thresholds) float64 {
	if grade == nil {
		return 1
	}
	return clamp(1+*grade/100*th.GradeFactorPerGrade, 0.5, 3)
}

// movingMedian smooths values over a centered time window, so the filter
// width does not depend on the sampling rate.
func movingMedian(samples []StreamSample, vals []float64, windowS float64) []float64 {
	out := make([]float64, len(vals))
	half := windowS / 2
	lo, hi := 0, 0
	buf := make([]float64, 0, 64)
	for i := range vals {
		t := samples[i].TimeS
		for lo < i && samples[lo].TimeS < t-half {
			lo++
		}
		if hi < i {
			hi = i
		}
		for hi+1 < len(vals) && samples[hi+1].TimeS <= t+half {
			hi++
		}
		buf = append(buf[:0], vals[lo:hi+1]...)
		out[i] = median(buf)
	}
	return out
}

// smoothOptional is movingMedian for a channel with holes. A sample without
// a reading stays without one.
func smoothOptional(samples []StreamSample, get func(StreamSample) *float64, windowS float64) []*float64 {
	out := make([]*float64, len(samples))
	half := windowS / 2
	lo, hi := 0, 0
	buf := make([]float64, 0, 64)
	for i := range samples {
		t := samples[i].TimeS
		for lo < i && samples[lo].TimeS < t-half {
			lo++
		}
		if hi < i {
			hi = i
		}
		for hi+1 < len(samples) && samples[hi+1].TimeS <= t+half {
			hi++
		}
		if get(samples[i]) == nil {
			continue
		}
		buf = buf[:0]
		for j := lo; j <= hi; j++ {
			if v := get(samples[j]); v != nil {
				buf = append(buf, *v)
			}
		}
		out[i] = ptr(median(buf))
	}
	return out
}

// median sorts vals in place.
func median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	sort.Float64s(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// meanOf averages the non-nil values, nil when there are none.
func meanOf(vals []*float64) *float64 {
	xs := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v != nil {
			xs = append(xs, *v)
		}
	}
	if len(xs) == 0 {
		return nil
	}
	return ptr(stat.Mean(xs, nil))
}

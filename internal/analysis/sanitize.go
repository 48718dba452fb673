package analysis

import (
	"math"
	"sort"
)

// sanitize returns a private copy of the samples with strictly increasing
// time and non-decreasing distance. repaired reports whether anything had to
// change; ok is false when too many samples had to be dropped to get there.
func sanitize(in []StreamSample, th Thresholds) (out []StreamSample, repaired bool, ok bool) {
	out = make([]StreamSample, 0, len(in))
	dropped := 0
	for _, s := range in {
		if !isFinite(s.TimeS) {
			dropped++
			continue
		}
		c := StreamSample{
			TimeS:      s.TimeS,
			DistanceM:  s.DistanceM,
			HR:         finiteCopy(s.HR),
			PaceSPerKm: positiveCopy(s.PaceSPerKm),
			CadenceSPM: positiveCopy(s.CadenceSPM),
			AltitudeM:  finiteCopy(s.AltitudeM),
			Grade:      finiteCopy(s.Grade),
		}
		if c.HR != nil && *c.HR <= 0 {
			c.HR = nil
		}
		out = append(out, c)
	}

	if !sort.SliceIsSorted(out, func(i, j int) bool { return out[i].TimeS < out[j].TimeS }) {
		sort.SliceStable(out, func(i, j int) bool { return out[i].TimeS < out[j].TimeS })
		repaired = true
	}

	// Duplicate timestamps keep the first sample.
	w := 0
	for i := range out {
		if w > 0 && out[i].TimeS <= out[w-1].TimeS {
			dropped++
			continue
		}
		out[w] = out[i]
		w++
	}
	out = out[:w]

	prev := 0.0
	for i := range out {
		d := out[i].DistanceM
		if !isFinite(d) || d < 0 {
			out[i].DistanceM = prev
			repaired = true
			continue
		}
		if d < prev {
			out[i].DistanceM = prev
			repaired = true
			continue
		}
		prev = d
	}

	if dropped > 0 {
		repaired = true
	}
	if len(in) > 0 && float64(dropped) > th.MaxSanitizedFraction*float64(len(in)) {
		return nil, repaired, false
	}
	return out, repaired, true
}

// decimate keeps limit evenly spaced samples, always including the first
// and the last one.
func decimate(samples []StreamSample, limit int) []StreamSample {
	n := len(samples)
	if limit < 2 || n <= limit {
		return samples
	}
	out := make([]StreamSample, limit)
	for j := 0; j < limit; j++ {
		idx := j * (n - 1) / (limit - 1)
		out[j] = samples[idx]
	}
	return out
}

// derivePace fills missing pace from distance over a centered time window.
// Samples slower than the moving threshold stay without pace.
func derivePace(samples []StreamSample, th Thresholds) bool {
	derived := false
	half := th.DerivedPaceWindowS / 2
	lo, hi := 0, 0
	n := len(samples)
	for i := range samples {
		t := samples[i].TimeS
		for lo < i && samples[lo].TimeS < t-half {
			lo++
		}
		if hi < i {
			hi = i
		}
		for hi+1 < n && samples[hi+1].TimeS <= t+half {
			hi++
		}
		if samples[i].PaceSPerKm != nil {
			continue
		}
		a, b := lo, hi
		if a == b {
			if b+1 < n {
				b++
			} else if a > 0 {
				a--
			}
		}
		dt := samples[b].TimeS - samples[a].TimeS
		dd := samples[b].DistanceM - samples[a].DistanceM
		if dt <= 0 || dd <= 0 {
			continue
		}
		speed := dd / dt
		if speed < th.MinMovingSpeedMPS {
			continue
		}
		pace := 1000 / speed
		samples[i].PaceSPerKm = &pace
		derived = true
	}
	return derived
}

// deriveGrade fills missing grade from altitude over the same window used
// for pace.
func deriveGrade(samples []StreamSample, th Thresholds) bool {
	derived := false
	half := th.DerivedPaceWindowS / 2
	lo, hi := 0, 0
	n := len(samples)
	for i := range samples {
		t := samples[i].TimeS
		for lo < i && samples[lo].TimeS < t-half {
			lo++
		}
		if hi < i {
			hi = i
		}
		for hi+1 < n && samples[hi+1].TimeS <= t+half {
			hi++
		}
		if samples[i].Grade != nil {
			continue
		}
		a, b := lo, hi
		if samples[a].AltitudeM == nil || samples[b].AltitudeM == nil {
			continue
		}
		dd := samples[b].DistanceM - samples[a].DistanceM
		if dd < 5 {
			continue
		}
		g := (*samples[b].AltitudeM - *samples[a].AltitudeM) / dd * 100
		g = clamp(g, -45, 45)
		samples[i].Grade = &g
		derived = true
	}
	return derived
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteCopy(p *float64) *float64 {
	if p == nil || !isFinite(*p) {
		return nil
	}
	v := *p
	return &v
}

func positiveCopy(p *float64) *float64 {
	if p == nil || !isFinite(*p) || *p <= 0 {
		return nil
	}
	v := *p
	return &v
}

// ptr returns nil for values that must not leak out as numbers.
func ptr(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

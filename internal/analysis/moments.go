package analysis

import (
	"math"
	"sort"
)

// detectMoments scans each segment for sustained deviations from the
// segment's own behavior and for slow heart rate recovery after work bouts.
func detectMoments(samples []StreamSample, e effortSeries, spans []span, q quality, th Thresholds) []Moment {
	moments := []Moment{}
	for _, s := range spans {
		if s.typ == SegmentWarmup || s.typ == SegmentCooldown {
			continue
		}
		moments = append(moments, paceMoments(samples, e, s, th)...)
		if q.present[ChannelCadence] {
			moments = append(moments, cadenceMoments(samples, e, s, th)...)
		}
	}
	if q.present[ChannelHR] {
		moments = append(moments, recoveryDelays(samples, e, spans, th)...)
	}

	sort.SliceStable(moments, func(i, j int) bool {
		if moments[i].Index != moments[j].Index {
			return moments[i].Index < moments[j].Index
		}
		return moments[i].Type < moments[j].Type
	})
	return moments
}

// excursion is a maximal run of samples on one side of a threshold.
type excursion struct {
	start, end int
	peak       int
	sign       int
}

// excursions finds runs where |dev| exceeds limit for at least minS seconds.
// Indices are limited to [from, to].
func excursions(samples []StreamSample, dev []float64, from, to int, limit, minS float64) []excursion {
	var out []excursion
	i := from
	for i <= to {
		sign := 0
		switch {
		case dev[i-from] > limit:
			sign = 1
		case dev[i-from] < -limit:
			sign = -1
		}
		if sign == 0 {
			i++
			continue
		}
		j, peak := i, i
		for j+1 <= to && float64(sign)*dev[j+1-from] > limit {
			j++
			if math.Abs(dev[j-from]) > math.Abs(dev[peak-from]) {
				peak = j
			}
		}
		if samples[j].TimeS-samples[i].TimeS >= minS {
			out = append(out, excursion{start: i, end: j, peak: peak, sign: sign})
		}
		i = j + 1
	}
	return out
}

// segmentContext maps a segment type onto a moment context.
func segmentContext(t SegmentType) *MomentContext {
	var c MomentContext
	switch t {
	case SegmentWork:
		c = ContextWork
	case SegmentRecovery:
		c = ContextRecovery
	case SegmentWarmup:
		c = ContextWarmup
	case SegmentCooldown:
		c = ContextCooldown
	default:
		c = ContextSteady
	}
	return &c
}

func contextPtr(c MomentContext) *MomentContext {
	return &c
}

// paceMoments reports surges and fades relative to the segment's mean speed.
// A deviation that a simultaneous grade change explains, and that vanishes
// once speed is grade adjusted, becomes a grade anomaly instead.
func paceMoments(samples []StreamSample, e effortSeries, s span, th Thresholds) []Moment {
	speeds := e.speed[s.start : s.end+1]
	var sum float64
	for _, v := range speeds {
		sum += v
	}
	mean := sum / float64(len(speeds))
	if mean < th.MinMovingSpeedMPS {
		return nil
	}

	dev := make([]float64, len(speeds))
	for i, v := range speeds {
		dev[i] = (v - mean) / mean
	}
	segGrade := meanOf(e.grade[s.start : s.end+1])
	var gapSum float64
	for _, v := range e.gap[s.start : s.end+1] {
		gapSum += v
	}
	gapMean := gapSum / float64(len(speeds))

	var out []Moment
	for _, x := range excursions(samples, dev, s.start, s.end, th.MomentSpeedDeviation, th.MomentMinDurationS) {
		m := Moment{
			Index:   x.peak,
			TimeS:   samples[x.peak].TimeS,
			Value:   ptr(dev[x.peak-s.start] * 100),
			Context: segmentContext(s.typ),
		}
		if x.sign > 0 {
			m.Type = MomentSurge
		} else {
			m.Type = MomentFade
		}

		if segGrade != nil && gapMean > 0 {
			if g := meanOf(e.grade[x.start : x.end+1]); g != nil {
				shift := *g - *segGrade
				var gapRun float64
				for _, v := range e.gap[x.start : x.end+1] {
					gapRun += v
				}
				gapDev := (gapRun/float64(x.end-x.start+1) - gapMean) / gapMean
				explained := (x.sign > 0 && shift <= -th.GradeAnomalyShiftPct) ||
					(x.sign < 0 && shift >= th.GradeAnomalyShiftPct)
				if explained && math.Abs(gapDev) < th.MomentSpeedDeviation {
					m.Type = MomentGradeAnomaly
					m.Value = ptr(shift)
					if shift > 0 {
						m.Context = contextPtr(ContextUphill)
					} else {
						m.Context = contextPtr(ContextDownhill)
					}
				}
			}
		}
		out = append(out, m)
	}
	return out
}

// cadenceMoments reports sustained cadence shifts away from the segment mean.
func cadenceMoments(samples []StreamSample, e effortSeries, s span, th Thresholds) []Moment {
	mean := meanOf(e.cadence[s.start : s.end+1])
	if mean == nil {
		return nil
	}
	dev := make([]float64, s.end-s.start+1)
	for i := range dev {
		if c := e.cadence[s.start+i]; c != nil {
			dev[i] = *c - *mean
		}
	}

	var out []Moment
	for _, x := range excursions(samples, dev, s.start, s.end, th.CadenceShiftSPM, th.MomentMinDurationS) {
		out = append(out, Moment{
			Type:    MomentCadenceShift,
			Index:   x.peak,
			TimeS:   samples[x.peak].TimeS,
			Value:   ptr(dev[x.peak-s.start]),
			Context: segmentContext(s.typ),
		})
	}
	return out
}

// recoveryDelays flags work-to-recovery transitions where heart rate has not
// dropped enough one recovery window after the transition.
func recoveryDelays(samples []StreamSample, e effortSeries, spans []span, th Thresholds) []Moment {
	var out []Moment
	for i := 0; i+1 < len(spans); i++ {
		work, rest := spans[i], spans[i+1]
		if work.typ != SegmentWork || rest.typ != SegmentRecovery {
			continue
		}
		boundary := rest.start
		t0 := samples[boundary].TimeS

		// Peak HR over the closing part of the work bout
		var peak *float64
		for j := work.end; j >= work.start && samples[j].TimeS >= t0-th.RecoveryWindowS/2; j-- {
			if h := e.hr[j]; h != nil && (peak == nil || *h > *peak) {
				peak = h
			}
		}
		if peak == nil {
			continue
		}

		var after *float64
		for j := boundary; j <= rest.end; j++ {
			if samples[j].TimeS-t0 >= th.RecoveryWindowS {
				after = e.hr[j]
				break
			}
		}
		if after == nil {
			continue
		}

		drop := *peak - *after
		if drop < th.RecoveryHRDropBPM {
			out = append(out, Moment{
				Type:    MomentRecoveryDelay,
				Index:   boundary,
				TimeS:   t0,
				Value:   ptr(drop),
				Context: contextPtr(ContextRecovery),
			})
		}
	}
	return out
}

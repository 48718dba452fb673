package analysis

// span is a segment under construction: an inclusive index range.
type span struct {
	typ        SegmentType
	start, end int
}

// segment partitions the stream into warmup, work, recovery, cooldown and
// steady spans. The result always covers [0, N-1] without gaps.
func segment(samples []StreamSample, e effortSeries, th Thresholds) []span {
	n := len(samples)
	if n == 0 {
		return nil
	}
	if e.flat {
		return []span{{typ: SegmentSteady, start: 0, end: n - 1}}
	}

	level := median(append([]float64(nil), e.z...))
	bodyStart := warmupEnd(samples, e.z, level, th)
	bodyEnd := cooldownStart(samples, e.z, level, th)
	if bodyStart > bodyEnd {
		bodyStart, bodyEnd = 0, n-1
	}

	var spans []span
	if bodyStart > 0 {
		spans = append(spans, span{typ: SegmentWarmup, start: 0, end: bodyStart - 1})
	}
	spans = append(spans, hysteresis(samples, e.z, bodyStart, bodyEnd, th)...)
	if bodyEnd < n-1 {
		spans = append(spans, span{typ: SegmentCooldown, start: bodyEnd + 1, end: n - 1})
	}

	return mergeShort(samples, spans, th)
}

type block struct {
	start, end int
	mean       float64
}

// blocks groups indices [from, to] into fixed-duration blocks, walking
// forward or backward, and averages z over each.
func blocks(samples []StreamSample, z []float64, from, to int, forward bool, th Thresholds) []block {
	var out []block
	if forward {
		for i := from; i <= to; {
			t0 := samples[i].TimeS
			j := i
			sum := 0.0
			for j <= to && samples[j].TimeS < t0+th.WarmupBlockS {
				sum += z[j]
				j++
			}
			out = append(out, block{start: i, end: j - 1, mean: sum / float64(j-i)})
			i = j
		}
		return out
	}
	for i := to; i >= from; {
		t0 := samples[i].TimeS
		j := i
		sum := 0.0
		for j >= from && samples[j].TimeS > t0-th.WarmupBlockS {
			sum += z[j]
			j--
		}
		out = append(out, block{start: j + 1, end: i, mean: sum / float64(i-j)})
		i = j
	}
	return out
}

// rampLength returns how many leading blocks form a ramp towards level: each
// block stays below level-margin, never dips more than the trend slack below
// its predecessor, and the ramp is followed by a block at the stable level.
func rampLength(bs []block, level float64, th Thresholds) int {
	below := level - th.WarmupMargin
	if len(bs) == 0 || bs[0].mean >= below {
		return 0
	}
	k := 0
	for k < len(bs) && bs[k].mean < below {
		if k > 0 && bs[k].mean < bs[k-1].mean-th.WarmupTrendSlack {
			return 0
		}
		k++
	}
	if k == len(bs) {
		return 0
	}
	return k
}

// warmupEnd returns the first body index, 0 when there is no warmup.
func warmupEnd(samples []StreamSample, z []float64, level float64, th Thresholds) int {
	n := len(samples)
	bs := blocks(samples, z, 0, n-1, true, th)
	k := rampLength(bs, level, th)
	if k == 0 {
		return 0
	}
	end := bs[k].start
	if !plausibleEdge(samples, 0, end, th) {
		return 0
	}
	return end
}

// cooldownStart returns the last body index, N-1 when there is no cooldown.
func cooldownStart(samples []StreamSample, z []float64, level float64, th Thresholds) int {
	n := len(samples)
	bs := blocks(samples, z, 0, n-1, false, th)
	k := rampLength(bs, level, th)
	if k == 0 {
		return n - 1
	}
	last := bs[k].end
	if !plausibleEdge(samples, last+1, n-1, th) {
		return n - 1
	}
	return last
}

// plausibleEdge checks a warmup or cooldown candidate spanning from..to in
// time against the minimum segment length and the maximum share of the run.
func plausibleEdge(samples []StreamSample, from, to int, th Thresholds) bool {
	total := samples[len(samples)-1].TimeS - samples[0].TimeS
	d := samples[to].TimeS - samples[from].TimeS
	return d >= th.MinSegmentS && d <= th.MaxWarmupFraction*total
}

// hysteresis labels [from, to] as work or non-work. Entering work needs z
// above the enter threshold for DwellS; leaving needs z below the exit
// threshold for DwellS. A switch starts at the first sample of the sustained
// crossing.
func hysteresis(samples []StreamSample, z []float64, from, to int, th Thresholds) []span {
	sustained := func(i int, ok func(float64) bool) bool {
		t0 := samples[i].TimeS
		for j := i; j <= to; j++ {
			if !ok(z[j]) {
				return false
			}
			if samples[j].TimeS-t0 >= th.DwellS {
				return true
			}
		}
		return false
	}
	above := func(v float64) bool { return v > th.WorkEnterZ }
	below := func(v float64) bool { return v < th.WorkExitZ }

	var raw []span
	working := false
	start := from
	for i := from; i <= to; i++ {
		switch {
		case !working && above(z[i]) && sustained(i, above):
			if i > start {
				raw = append(raw, span{typ: SegmentSteady, start: start, end: i - 1})
			}
			working, start = true, i
		case working && below(z[i]) && sustained(i, below):
			raw = append(raw, span{typ: SegmentWork, start: start, end: i - 1})
			working, start = false, i
		}
	}
	typ := SegmentSteady
	if working {
		typ = SegmentWork
	}
	raw = append(raw, span{typ: typ, start: start, end: to})
	return raw
}

// spanDuration telescopes: a span lasts until the next span starts.
func spanDuration(samples []StreamSample, s span) float64 {
	end := s.end
	if end+1 < len(samples) {
		end++
	}
	return samples[end].TimeS - samples[s.start].TimeS
}

// relabel marks non-work spans sandwiched between work bouts as recovery
// when they are short enough to be rest, steady otherwise.
func relabel(samples []StreamSample, spans []span, th Thresholds) {
	for i := range spans {
		if spans[i].typ != SegmentSteady && spans[i].typ != SegmentRecovery {
			continue
		}
		between := i > 0 && i+1 < len(spans) &&
			spans[i-1].typ == SegmentWork && spans[i+1].typ == SegmentWork
		if between && spanDuration(samples, spans[i]) <= th.MaxRecoveryS {
			spans[i].typ = SegmentRecovery
		} else {
			spans[i].typ = SegmentSteady
		}
	}
}

// coalesce joins neighbors of the same type.
func coalesce(spans []span) []span {
	out := spans[:0]
	for _, s := range spans {
		if len(out) > 0 && out[len(out)-1].typ == s.typ {
			out[len(out)-1].end = s.end
			continue
		}
		out = append(out, s)
	}
	return out
}

// mergeShort folds spans shorter than MinSegmentS into their longer
// neighbor, shortest first, until none is left or only one span remains.
func mergeShort(samples []StreamSample, spans []span, th Thresholds) []span {
	for {
		relabel(samples, spans, th)
		spans = coalesce(spans)
		if len(spans) <= 1 {
			return spans
		}

		shortest := -1
		for i, s := range spans {
			d := spanDuration(samples, s)
			if d >= th.MinSegmentS {
				continue
			}
			if shortest < 0 || d < spanDuration(samples, spans[shortest]) {
				shortest = i
			}
		}
		if shortest < 0 {
			return spans
		}

		into := shortest - 1
		if shortest == 0 {
			into = 1
		} else if shortest+1 < len(spans) &&
			spanDuration(samples, spans[shortest+1]) > spanDuration(samples, spans[into]) {
			into = shortest + 1
		}
		if into < shortest {
			spans[into].end = spans[shortest].end
		} else {
			spans[into].start = spans[shortest].start
		}
		spans = append(spans[:shortest], spans[shortest+1:]...)
	}
}

// buildSegments attaches times and channel averages to the spans.
func buildSegments(samples []StreamSample, spans []span) []Segment {
	out := make([]Segment, 0, len(spans))
	for _, s := range spans {
		next := s.end
		if next+1 < len(samples) {
			next++
		}
		seg := Segment{
			Type:       s.typ,
			StartIndex: s.start,
			EndIndex:   s.end,
			StartTimeS: samples[s.start].TimeS,
			EndTimeS:   samples[next].TimeS,
			DistanceM:  samples[next].DistanceM - samples[s.start].DistanceM,
		}
		seg.DurationS = seg.EndTimeS - seg.StartTimeS
		if seg.DistanceM > 0 && seg.DurationS > 0 {
			seg.AvgPaceSKm = ptr(seg.DurationS / (seg.DistanceM / 1000))
		}

		var hr, cad, grade []*float64
		for _, smp := range samples[s.start : s.end+1] {
			hr = append(hr, smp.HR)
			cad = append(cad, smp.CadenceSPM)
			grade = append(grade, smp.Grade)
		}
		seg.AvgHR = meanOf(hr)
		seg.AvgCadence = meanOf(cad)
		seg.AvgGrade = meanOf(grade)
		out = append(out, seg)
	}
	return out
}

package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
)

func f(v float64) *float64 { return &v }

func n(v int) *int { return &v }

// constantRun builds 1 Hz samples at a fixed pace. hr and cadence of 0 leave
// the channel out.
func constantRun(count int, pace, hr, cadence float64) []StreamSample {
	speed := 1000 / pace
	samples := make([]StreamSample, count)
	for i := range samples {
		s := StreamSample{
			TimeS:      float64(i),
			DistanceM:  float64(i) * speed,
			PaceSPerKm: f(pace),
		}
		if hr > 0 {
			s.HR = f(hr)
		}
		if cadence > 0 {
			s.CadenceSPM = f(cadence)
		}
		samples[i] = s
	}
	return samples
}

// intervalSession builds reps of (hardS at hardPace / easyS at easyPace).
func intervalSession(reps int, hardS, easyS int, hardPace, easyPace float64) []StreamSample {
	var samples []StreamSample
	var dist float64
	t := 0
	add := func(secs int, pace, hr, cad float64) {
		for i := 0; i < secs; i++ {
			samples = append(samples, StreamSample{
				TimeS:      float64(t),
				DistanceM:  dist,
				PaceSPerKm: f(pace),
				HR:         f(hr),
				CadenceSPM: f(cad),
			})
			dist += 1000 / pace
			t++
		}
	}
	for r := 0; r < reps; r++ {
		add(hardS, hardPace, 165, 182)
		add(easyS, easyPace, 140, 166)
	}
	return samples
}

func analyzeOK(t *testing.T, in Input) *StreamAnalysisResult {
	t.Helper()
	out := Analyze(in, DefaultThresholds())
	if out.Status != StatusSuccess {
		t.Fatalf("Expected success, got %s (reason %q, err %v)", out.Status, out.Reason, out.Err)
	}
	return out.Result
}

func checkPartition(t *testing.T, r *StreamAnalysisResult, samples []StreamSample) {
	t.Helper()
	last := len(samples) - 1
	if r.Segments[0].StartIndex != 0 {
		t.Errorf("First segment starts at %d", r.Segments[0].StartIndex)
	}
	if got := r.Segments[len(r.Segments)-1].EndIndex; got != r.PointCount-1 {
		t.Errorf("Last segment ends at %d, want %d", got, r.PointCount-1)
	}
	var sum float64
	for i, s := range r.Segments {
		if i > 0 && s.StartIndex != r.Segments[i-1].EndIndex+1 {
			t.Errorf("Segment %d starts at %d after %d", i, s.StartIndex, r.Segments[i-1].EndIndex)
		}
		sum += s.DurationS
	}
	total := samples[last].TimeS - samples[0].TimeS
	if math.Abs(sum-total) > 1e-6 {
		t.Errorf("Durations sum to %f, want %f", sum, total)
	}
	for i, v := range r.EffortIntensity {
		if v < 0 || v > 1 {
			t.Fatalf("effort_intensity[%d] = %f out of range", i, v)
		}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		t.Errorf("Confidence %f out of range", r.Confidence)
	}
}

func countType(segs []Segment, typ SegmentType) int {
	c := 0
	for _, s := range segs {
		if s.Type == typ {
			c++
		}
	}
	return c
}

func TestAnalyze_ConstantRun(t *testing.T) {
	samples := constantRun(3600, 300, 140, 170)
	r := analyzeOK(t, Input{ActivityID: 1, Samples: samples})

	if len(r.Segments) != 1 || r.Segments[0].Type != SegmentSteady {
		t.Fatalf("Expected one steady segment, got %+v", r.Segments)
	}
	if r.Segments[0].StartIndex != 0 || r.Segments[0].EndIndex != 3599 {
		t.Errorf("Steady segment spans %d..%d", r.Segments[0].StartIndex, r.Segments[0].EndIndex)
	}
	if r.Drift.CardiacPct == nil || math.Abs(*r.Drift.CardiacPct) > 0.5 {
		t.Errorf("Expected cardiac drift ~0, got %v", r.Drift.CardiacPct)
	}
	if len(r.Moments) != 0 {
		t.Errorf("Expected no moments, got %+v", r.Moments)
	}
	if r.TierUsed != Tier1 {
		t.Errorf("Expected tier1, got %s", r.TierUsed)
	}
	if r.Confidence < 0.9 {
		t.Errorf("Expected high confidence, got %.2f", r.Confidence)
	}
	if !r.CrossRunComparable {
		t.Error("Expected a clean tier1 run to be cross-run comparable")
	}
	if avg := r.Segments[0].AvgPaceSKm; avg == nil || math.Abs(*avg-300) > 0.01 {
		t.Errorf("Expected avg pace 300, got %v", avg)
	}
	checkPartition(t, r, samples)
}

func TestAnalyze_IntervalsMatchPlan(t *testing.T) {
	samples := intervalSession(8, 180, 120, 240, 360)
	r := analyzeOK(t, Input{
		ActivityID: 2,
		Samples:    samples,
		Plan:       &PrescribedWorkout{PlannedIntervalCount: n(8)},
	})

	work := countType(r.Segments, SegmentWork)
	if work < 7 || work > 9 {
		t.Errorf("Expected 8 (+/-1) work segments, got %d: %+v", work, r.Segments)
	}
	if r.PlanComparison == nil {
		t.Fatal("Expected a plan comparison")
	}
	if r.PlanComparison.IntervalCountMatch == nil || !*r.PlanComparison.IntervalCountMatch {
		t.Errorf("Expected interval count match, got %+v", r.PlanComparison)
	}
	if r.PlanComparison.ActualIntervalCount != work {
		t.Errorf("Actual interval count %d, work segments %d", r.PlanComparison.ActualIntervalCount, work)
	}
	// Only the work bouts count towards pace on an interval plan
	if p := r.PlanComparison.ActualPaceSKm; p == nil || math.Abs(*p-240) > 10 {
		t.Errorf("Expected work pace ~240 s/km, got %v", p)
	}
	if r.PlanComparison.DurationDeltaMin != nil {
		t.Error("Expected nil duration delta without a planned duration")
	}
	checkPartition(t, r, samples)
}

func TestAnalyze_NoHeartRate(t *testing.T) {
	samples := constantRun(1800, 330, 0, 172)
	r := analyzeOK(t, Input{
		ActivityID: 3,
		Samples:    samples,
		Channels:   &ChannelMetadata{GPS: true, Cadence: true},
	})

	if r.TierUsed != Tier2 {
		t.Errorf("Expected tier2, got %s", r.TierUsed)
	}
	if len(r.ChannelsMissing) != 1 || r.ChannelsMissing[0] != ChannelHR {
		t.Errorf("Expected channels_missing [hr], got %v", r.ChannelsMissing)
	}
	if r.Drift.CardiacPct != nil {
		t.Errorf("Expected nil cardiac drift, got %f", *r.Drift.CardiacPct)
	}
	if r.Drift.CadenceTrendBpmPerKm == nil {
		t.Error("Expected a cadence trend with cadence present")
	}
	if r.Confidence > tierCap(Tier2) {
		t.Errorf("Confidence %.2f above tier2 cap", r.Confidence)
	}
	if r.CrossRunComparable {
		t.Error("Runs without HR are not cross-run comparable")
	}
}

func TestAnalyze_PaceOnly(t *testing.T) {
	samples := constantRun(1200, 320, 0, 0)
	r := analyzeOK(t, Input{ActivityID: 4, Samples: samples})

	if r.TierUsed != Tier3 {
		t.Errorf("Expected tier3, got %s", r.TierUsed)
	}
	if r.Confidence > tierCap(Tier3) {
		t.Errorf("Confidence %.2f above tier3 cap", r.Confidence)
	}
	if r.Drift.CardiacPct != nil || r.Drift.CadenceTrendBpmPerKm != nil {
		t.Errorf("Expected nil HR and cadence drift, got %+v", r.Drift)
	}
	if r.Drift.PacePct == nil {
		t.Error("Expected pace drift from distance alone")
	}
}

func TestAnalyze_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want UnavailableReason
	}{
		{
			name: "manual activity",
			in:   Input{ActivityID: 5, Channels: &ChannelMetadata{Manual: true}},
			want: ReasonManual,
		},
		{
			name: "no samples",
			in:   Input{ActivityID: 6},
			want: ReasonNoStream,
		},
		{
			name: "no distance",
			in: Input{ActivityID: 7, Samples: func() []StreamSample {
				s := constantRun(600, 300, 140, 170)
				for i := range s {
					s[i].DistanceM = 0
				}
				return s
			}()},
			want: ReasonNoDistance,
		},
		{
			name: "too few samples",
			in:   Input{ActivityID: 8, Samples: constantRun(30, 300, 140, 170)},
			want: ReasonTooShort,
		},
		{
			name: "unrepairable time",
			in: Input{ActivityID: 9, Samples: func() []StreamSample {
				s := constantRun(600, 300, 140, 170)
				for i := 0; i < 100; i++ {
					s[i*6].TimeS = math.NaN()
				}
				return s
			}()},
			want: ReasonNonMonotonic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Analyze(tt.in, DefaultThresholds())
			if out.Status != StatusUnavailable {
				t.Fatalf("Expected unavailable, got %s (err %v)", out.Status, out.Err)
			}
			if out.Reason != tt.want {
				t.Errorf("Expected reason %s, got %s", tt.want, out.Reason)
			}
			if out.Result != nil {
				t.Error("Expected no result for an unavailable analysis")
			}
		})
	}
}

func TestAnalyze_SeriesBudgets(t *testing.T) {
	samples := constantRun(10000, 310, 150, 175)
	r := analyzeOK(t, Input{ActivityID: 10, Samples: samples})

	if len(r.Series) != 500 {
		t.Fatalf("Expected 500 series points, got %d", len(r.Series))
	}
	if len(r.Thumbnail) != 50 {
		t.Fatalf("Expected 50 thumbnail points, got %d", len(r.Thumbnail))
	}
	for _, series := range [][]SeriesPoint{r.Series, r.Thumbnail} {
		if series[0].TimeS != samples[0].TimeS {
			t.Errorf("First time %f, want %f", series[0].TimeS, samples[0].TimeS)
		}
		if series[len(series)-1].TimeS != samples[len(samples)-1].TimeS {
			t.Errorf("Last time %f, want %f", series[len(series)-1].TimeS, samples[len(samples)-1].TimeS)
		}
	}
	if len(r.EffortIntensity) != 10000 {
		t.Errorf("Expected one intensity per point, got %d", len(r.EffortIntensity))
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	samples := intervalSession(5, 240, 90, 250, 380)
	for i := range samples {
		jitter := 4 * math.Sin(float64(i)*0.7)
		*samples[i].PaceSPerKm += jitter
		*samples[i].HR += math.Round(3 * math.Cos(float64(i)*0.3))
	}
	in := Input{
		ActivityID: 11,
		Samples:    samples,
		Plan:       &PrescribedWorkout{PlannedDurationMin: f(30), PlannedIntervalCount: n(5)},
	}

	a, err := json.Marshal(Analyze(in, DefaultThresholds()).Result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(Analyze(in, DefaultThresholds()).Result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Expected byte-identical output for identical input")
	}
}

func TestAnalyze_DoesNotMutateInput(t *testing.T) {
	samples := constantRun(600, 300, 0, 0)
	samples[10].PaceSPerKm = nil
	Analyze(Input{ActivityID: 12, Samples: samples}, DefaultThresholds())
	if samples[10].PaceSPerKm != nil {
		t.Error("Analyze filled pace into the caller's samples")
	}
}

func TestAnalyze_NoPlan(t *testing.T) {
	r := analyzeOK(t, Input{ActivityID: 13, Samples: constantRun(900, 300, 140, 170)})
	if r.PlanComparison != nil {
		t.Errorf("Expected nil plan comparison, got %+v", r.PlanComparison)
	}

	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"plan_comparison":null`)) {
		t.Error("Expected plan_comparison to serialize as null")
	}
}

func TestAnalyze_SanitizesOrder(t *testing.T) {
	samples := constantRun(900, 300, 140, 170)
	samples[100], samples[101] = samples[101], samples[100]
	samples = append(samples, samples[500])

	r := analyzeOK(t, Input{ActivityID: 14, Samples: samples})
	if r.PointCount != 900 {
		t.Errorf("Expected duplicate dropped, got %d points", r.PointCount)
	}
	found := false
	for _, fl := range r.EstimatedFlags {
		if fl == FlagTimeSanitized {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected time_sanitized flag, got %v", r.EstimatedFlags)
	}
}

func TestAnalyze_DecimatesOversizedInput(t *testing.T) {
	th := DefaultThresholds()
	th.MaxInputSamples = 1000
	out := Analyze(Input{ActivityID: 15, Samples: constantRun(3600, 300, 140, 170)}, th)
	if out.Status != StatusSuccess {
		t.Fatalf("Expected success, got %s", out.Status)
	}
	r := out.Result
	if r.PointCount != 1000 {
		t.Errorf("Expected 1000 points after decimation, got %d", r.PointCount)
	}
	if r.CrossRunComparable {
		t.Error("Decimated runs are not cross-run comparable")
	}
	if len(r.EstimatedFlags) == 0 || r.EstimatedFlags[0] != FlagInputDecimated {
		t.Errorf("Expected input_decimated flag, got %v", r.EstimatedFlags)
	}
}

func TestAnalyze_DerivesPace(t *testing.T) {
	samples := constantRun(900, 300, 140, 170)
	for i := range samples {
		samples[i].PaceSPerKm = nil
	}
	r := analyzeOK(t, Input{ActivityID: 16, Samples: samples})

	if len(r.EstimatedFlags) != 1 || r.EstimatedFlags[0] != FlagPaceDerived {
		t.Errorf("Expected pace_derived flag, got %v", r.EstimatedFlags)
	}
	if p := r.Segments[0].AvgPaceSKm; p == nil || math.Abs(*p-300) > 0.5 {
		t.Errorf("Expected avg pace ~300, got %v", p)
	}
}

func TestAnalyze_PartitionHolds(t *testing.T) {
	tests := []struct {
		name    string
		samples []StreamSample
	}{
		{"constant", constantRun(1200, 300, 140, 170)},
		{"intervals", intervalSession(6, 60, 60, 230, 400)},
		{"short reps", intervalSession(20, 25, 15, 220, 380)},
		{"long reps", intervalSession(3, 600, 180, 260, 340)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := analyzeOK(t, Input{Samples: tt.samples})
			checkPartition(t, r, tt.samples)
		})
	}
}

func TestValidate_RejectsBrokenPartition(t *testing.T) {
	samples := constantRun(600, 300, 140, 170)
	r := analyzeOK(t, Input{Samples: samples})
	r.Segments = append(r.Segments, Segment{Type: SegmentSteady, StartIndex: 700, EndIndex: 800})

	if err := validate(r, samples, false); err == nil {
		t.Error("Expected an invariant error for a broken partition")
	}
}

func TestValidate_RejectsUnknownMomentContext(t *testing.T) {
	samples := constantRun(600, 300, 140, 170)
	r := analyzeOK(t, Input{Samples: samples})
	ctx := MomentContext("felt sluggish after the bridge")
	r.Moments = append(r.Moments, Moment{Type: MomentFade, Index: 10, TimeS: 10, Context: &ctx})

	if err := validate(r, samples, false); err == nil {
		t.Error("Expected an invariant error for a free-text context")
	}
}

package analysis

import (
	"math"
	"testing"
)

// climb is a 1 Hz run at 5:00/km whose altitude changes by slopePct per
// 100 m. A non-nil grade is recorded on every sample.
func climb(count int, slopePct float64, grade *float64) []StreamSample {
	samples := constantRun(count, 300, 150, 174)
	for i := range samples {
		samples[i].AltitudeM = f(100 + samples[i].DistanceM*slopePct/100)
		if grade != nil {
			samples[i].Grade = f(*grade)
		}
	}
	return samples
}

func TestDeriveGrade(t *testing.T) {
	noAltitude := constantRun(120, 300, 150, 174)

	tests := []struct {
		name        string
		samples     []StreamSample
		wantDerived bool
		wantGrade   *float64
	}{
		{"climb", climb(120, 5, nil), true, f(5)},
		{"descent", climb(120, -3, nil), true, f(-3)},
		{"steep wall is clamped", climb(120, 80, nil), true, f(45)},
		{"measured grade kept", climb(120, 5, f(2)), false, f(2)},
		{"no altitude", noAltitude, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			derived := deriveGrade(tt.samples, DefaultThresholds())
			if derived != tt.wantDerived {
				t.Errorf("Expected derived=%v, got %v", tt.wantDerived, derived)
			}
			got := tt.samples[60].Grade
			switch {
			case tt.wantGrade == nil && got != nil:
				t.Errorf("Expected no grade, got %f", *got)
			case tt.wantGrade != nil && (got == nil || math.Abs(*got-*tt.wantGrade) > 1e-6):
				t.Errorf("Expected grade %f, got %v", *tt.wantGrade, got)
			}
		})
	}
}

func TestAnalyze_DerivesGrade(t *testing.T) {
	r := analyzeOK(t, Input{ActivityID: 17, Samples: climb(900, 4, nil)})

	if len(r.EstimatedFlags) != 1 || r.EstimatedFlags[0] != FlagGradeDerived {
		t.Errorf("Expected grade_derived flag, got %v", r.EstimatedFlags)
	}
}

func TestAnalyze_MeasuredGradeIsNotFlagged(t *testing.T) {
	r := analyzeOK(t, Input{ActivityID: 18, Samples: climb(900, 4, f(4))})

	for _, fl := range r.EstimatedFlags {
		if fl == FlagGradeDerived {
			t.Errorf("Expected no grade_derived flag for measured grade, got %v", r.EstimatedFlags)
		}
	}
}

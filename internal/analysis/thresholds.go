package analysis

// Thresholds holds every tunable constant of the engine. The defaults are
// starting points; they are meant to be calibrated against real run data
// through the config file rather than edited here.
type Thresholds struct {
	// Input bounds
	MinSamples           int     // fewer samples than this is unavailable
	MinDurationS         float64 // shorter runs are unavailable
	MaxInputSamples      int     // larger inputs are decimated before segmentation
	MaxSanitizedFraction float64 // max share of samples dropped while sanitizing

	// Quality / tier
	MinChannelCoverage      float64 // share of samples carrying a channel for it to count as present
	MinSamplesPerMinute     float64 // tier1 density floor
	TargetSamplesPerMinute  float64 // density that earns full density score
	MaxGapS                 float64 // a time gap larger than this is "large"
	MaxPlausibleSpeedMPS    float64 // distance jumps faster than this are gaps
	CrossRunMinConfidence   float64
	SignalLossConfidenceMul float64

	// Smoothing / effort
	MedianWindowS       float64 // moving median window, seconds
	DerivedPaceWindowS  float64 // trailing window for pace derived from distance
	MinMovingSpeedMPS   float64 // slower than this counts as stopped
	GradeFactorPerGrade float64 // effort multiplier per unit grade (0.10 = 10%)
	MinEffortCV         float64 // spread floor for z-scores, as a fraction of the mean

	// Segmentation
	WorkEnterZ        float64 // hysteresis upper threshold
	WorkExitZ         float64 // hysteresis lower threshold
	DwellS            float64 // time a crossing must be sustained
	MinSegmentS       float64 // shorter segments are merged into a neighbor
	MaxRecoveryS      float64 // longer non-work gaps between work bouts are steady
	WarmupBlockS      float64 // block length used for warmup/cooldown trend
	WarmupMargin      float64 // z below the stable level that still counts as warming up
	WarmupTrendSlack  float64 // allowed block-to-block dip while ramping
	MaxWarmupFraction float64 // warmup and cooldown may each cover at most this share

	// Drift
	MinDriftBodyS          float64
	MinRegressionDistanceM float64
	MinValidHR             float64
	MaxValidHR             float64

	// Moments
	MomentMinDurationS   float64
	MomentSpeedDeviation float64 // fraction of the segment mean speed
	GradeAnomalyShiftPct float64 // grade shift (percent points) that explains a deviation
	CadenceShiftSPM      float64
	RecoveryWindowS      float64
	RecoveryHRDropBPM    float64

	// Downsampling
	VisualizationPoints int
	ThumbnailPoints     int
}

// DefaultThresholds returns the calibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSamples:           60,
		MinDurationS:         120,
		MaxInputSamples:      50000,
		MaxSanitizedFraction: 0.10,

		MinChannelCoverage:      0.5,
		MinSamplesPerMinute:     6,
		TargetSamplesPerMinute:  30,
		MaxGapS:                 60,
		MaxPlausibleSpeedMPS:    12.5,
		CrossRunMinConfidence:   0.7,
		SignalLossConfidenceMul: 0.8,

		MedianWindowS:       15,
		DerivedPaceWindowS:  10,
		MinMovingSpeedMPS:   0.5,
		GradeFactorPerGrade: 3.0,
		MinEffortCV:         0.03,

		WorkEnterZ:        0.5,
		WorkExitZ:         0.0,
		DwellS:            20,
		MinSegmentS:       30,
		MaxRecoveryS:      600,
		WarmupBlockS:      30,
		WarmupMargin:      0.5,
		WarmupTrendSlack:  0.25,
		MaxWarmupFraction: 0.25,

		MinDriftBodyS:          240,
		MinRegressionDistanceM: 500,
		MinValidHR:             50,
		MaxValidHR:             220,

		MomentMinDurationS:   15,
		MomentSpeedDeviation: 0.10,
		GradeAnomalyShiftPct: 3,
		CadenceShiftSPM:      8,
		RecoveryWindowS:      60,
		RecoveryHRDropBPM:    12,

		VisualizationPoints: 500,
		ThumbnailPoints:     50,
	}
}

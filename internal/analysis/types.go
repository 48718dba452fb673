package analysis

// Version is the analysis_version stamped on every cached result.
// Bump it whenever an algorithm change should invalidate stored results.
const Version = 1

// StreamSample is one telemetry sample of a completed run.
// Optional channels are nil when the device did not record them.
type StreamSample struct {
	TimeS      float64  `json:"time_s"`
	DistanceM  float64  `json:"distance_m"`
	HR         *float64 `json:"hr,omitempty"`
	PaceSPerKm *float64 `json:"pace_s_per_km,omitempty"`
	CadenceSPM *float64 `json:"cadence_spm,omitempty"`
	AltitudeM  *float64 `json:"altitude_m,omitempty"`
	Grade      *float64 `json:"grade,omitempty"` // percent
}

// Channel identifies a telemetry channel.
type Channel string

const (
	ChannelGPS      Channel = "gps"
	ChannelHR       Channel = "hr"
	ChannelCadence  Channel = "cadence"
	ChannelAltitude Channel = "altitude"
)

// coreChannels decide the tier and are the only channels reported as missing.
var coreChannels = []Channel{ChannelGPS, ChannelHR, ChannelCadence}

// ChannelMetadata is what the ingestion side knows about the recording.
type ChannelMetadata struct {
	GPS      bool `json:"gps"`
	HR       bool `json:"hr"`
	Cadence  bool `json:"cadence"`
	Altitude bool `json:"altitude"`

	// Manual marks a hand-logged activity with no recorded stream.
	Manual bool `json:"manual"`
	// GPSSignalLoss is an upstream accuracy flag.
	GPSSignalLoss bool `json:"gps_signal_loss"`
}

// PrescribedWorkout is the planned structure for the activity, if any.
type PrescribedWorkout struct {
	PlannedDurationMin   *float64 `json:"planned_duration_min,omitempty"`
	PlannedDistanceKm    *float64 `json:"planned_distance_km,omitempty"`
	PlannedPaceSKm       *float64 `json:"planned_pace_s_km,omitempty"`
	PlannedIntervalCount *int     `json:"planned_interval_count,omitempty"`
}

// Input is everything one analysis call consumes.
type Input struct {
	ActivityID int64
	Samples    []StreamSample
	// Channels is optional; when nil presence is inferred from the samples.
	Channels *ChannelMetadata
	Plan     *PrescribedWorkout
}

// Tier is the capability level of an analysis.
type Tier string

const (
	Tier1 Tier = "tier1"
	Tier2 Tier = "tier2"
	Tier3 Tier = "tier3"
)

// SegmentType classifies a contiguous stretch of the run.
type SegmentType string

const (
	SegmentWarmup   SegmentType = "warmup"
	SegmentWork     SegmentType = "work"
	SegmentRecovery SegmentType = "recovery"
	SegmentCooldown SegmentType = "cooldown"
	SegmentSteady   SegmentType = "steady"
)

// Segment is an index range [StartIndex, EndIndex] of the analyzed stream.
// EndTimeS is the start time of the following segment so durations telescope
// to the total stream duration.
type Segment struct {
	Type       SegmentType `json:"type"`
	StartIndex int         `json:"start_index"`
	EndIndex   int         `json:"end_index"`
	StartTimeS float64     `json:"start_time_s"`
	EndTimeS   float64     `json:"end_time_s"`
	DurationS  float64     `json:"duration_s"`
	DistanceM  float64     `json:"distance_m"`
	AvgPaceSKm *float64    `json:"avg_pace_s_km"`
	AvgHR      *float64    `json:"avg_hr"`
	AvgCadence *float64    `json:"avg_cadence"`
	AvgGrade   *float64    `json:"avg_grade"`
}

// DriftAnalysis fields are nil when the required channel is absent or the
// body of the run is too short to split.
type DriftAnalysis struct {
	CardiacPct           *float64 `json:"cardiac_pct"`
	PacePct              *float64 `json:"pace_pct"`
	CadenceTrendBpmPerKm *float64 `json:"cadence_trend_bpm_per_km"`
}

// MomentType is the closed set of detectable point events.
type MomentType string

const (
	MomentSurge         MomentType = "surge"
	MomentFade          MomentType = "fade"
	MomentGradeAnomaly  MomentType = "grade_anomaly"
	MomentCadenceShift  MomentType = "cadence_shift"
	MomentRecoveryDelay MomentType = "recovery_delay"
)

// Valid reports whether t is one of the known moment types.
func (t MomentType) Valid() bool {
	switch t {
	case MomentSurge, MomentFade, MomentGradeAnomaly, MomentCadenceShift, MomentRecoveryDelay:
		return true
	}
	return false
}

// MomentContext is the closed set of context labels attached to a moment.
type MomentContext string

const (
	ContextWork     MomentContext = "work"
	ContextRecovery MomentContext = "recovery"
	ContextSteady   MomentContext = "steady"
	ContextWarmup   MomentContext = "warmup"
	ContextCooldown MomentContext = "cooldown"
	ContextUphill   MomentContext = "uphill"
	ContextDownhill MomentContext = "downhill"
)

// Valid reports whether c is one of the known contexts.
func (c MomentContext) Valid() bool {
	switch c {
	case ContextWork, ContextRecovery, ContextSteady, ContextWarmup,
		ContextCooldown, ContextUphill, ContextDownhill:
		return true
	}
	return false
}

// Moment is a notable point event in the run.
type Moment struct {
	Type    MomentType     `json:"type"`
	Index   int            `json:"index"`
	TimeS   float64        `json:"time_s"`
	Value   *float64       `json:"value"`
	Context *MomentContext `json:"context"`
}

// PlanComparison is produced only when a prescribed workout exists.
type PlanComparison struct {
	PlannedDurationMin   *float64 `json:"planned_duration_min"`
	ActualDurationMin    float64  `json:"actual_duration_min"`
	DurationDeltaMin     *float64 `json:"duration_delta_min"`
	PlannedDistanceKm    *float64 `json:"planned_distance_km"`
	ActualDistanceKm     float64  `json:"actual_distance_km"`
	DistanceDeltaKm      *float64 `json:"distance_delta_km"`
	PlannedPaceSKm       *float64 `json:"planned_pace_s_km"`
	ActualPaceSKm        *float64 `json:"actual_pace_s_km"`
	PaceDeltaSKm         *float64 `json:"pace_delta_s_km"`
	PlannedIntervalCount *int     `json:"planned_interval_count"`
	ActualIntervalCount  int      `json:"actual_interval_count"`
	IntervalCountMatch   *bool    `json:"interval_count_match"`
}

// EstimatedFlag marks a value the engine derived instead of measured.
type EstimatedFlag string

const (
	FlagPaceDerived    EstimatedFlag = "pace_derived"
	FlagGradeDerived   EstimatedFlag = "grade_derived"
	FlagInputDecimated EstimatedFlag = "input_decimated"
	FlagTimeSanitized  EstimatedFlag = "time_sanitized"
)

// SeriesPoint is one retained point of a downsampled series.
type SeriesPoint struct {
	Index      int      `json:"index"`
	TimeS      float64  `json:"time_s"`
	DistanceM  float64  `json:"distance_m"`
	PaceSPerKm *float64 `json:"pace_s_per_km"`
	HR         *float64 `json:"hr"`
	Effort     float64  `json:"effort"`
}

// StreamAnalysisResult is the immutable aggregate produced for one activity.
type StreamAnalysisResult struct {
	ActivityID         int64           `json:"activity_id"`
	AnalysisVersion    int             `json:"analysis_version"`
	Segments           []Segment       `json:"segments"`
	Drift              DriftAnalysis   `json:"drift"`
	Moments            []Moment        `json:"moments"`
	PlanComparison     *PlanComparison `json:"plan_comparison"`
	ChannelsPresent    []Channel       `json:"channels_present"`
	ChannelsMissing    []Channel       `json:"channels_missing"`
	PointCount         int             `json:"point_count"`
	Confidence         float64         `json:"confidence"`
	TierUsed           Tier            `json:"tier_used"`
	EstimatedFlags     []EstimatedFlag `json:"estimated_flags"`
	CrossRunComparable bool            `json:"cross_run_comparable"`
	EffortIntensity    []float64       `json:"effort_intensity"`
	Series             []SeriesPoint   `json:"series"`
	Thumbnail          []SeriesPoint   `json:"thumbnail"`
}

// Status is the lifecycle status reported to consumers.
type Status string

const (
	StatusPending     Status = "pending"
	StatusFetching    Status = "fetching"
	StatusSuccess     Status = "success"
	StatusUnavailable Status = "unavailable"
	StatusError       Status = "error"
)

// InProgress reports whether consumers should treat the status as not yet
// available. Pending and fetching are indistinguishable to them.
func (s Status) InProgress() bool {
	return s == StatusPending || s == StatusFetching
}

// Terminal reports whether a status is final for the current analysis version.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusUnavailable || s == StatusError
}

// UnavailableReason explains an unavailable outcome.
type UnavailableReason string

const (
	ReasonNoStream     UnavailableReason = "no_stream"
	ReasonManual       UnavailableReason = "manual_activity"
	ReasonNoDistance   UnavailableReason = "no_distance"
	ReasonTooShort     UnavailableReason = "too_short"
	ReasonNonMonotonic UnavailableReason = "non_monotonic"
)

// Outcome is the result of one pipeline run.
type Outcome struct {
	Status Status
	Result *StreamAnalysisResult
	Reason UnavailableReason
	Err    error
}

package store

import "time"

// Auth represents OAuth tokens for Strava API access
type Auth struct {
	AthleteID    int64     `db:"athlete_id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Activity represents an activity summary
type Activity struct {
	ID                 int64     `db:"id"`
	AthleteID          int64     `db:"athlete_id"`
	Name               string    `db:"name"`
	Type               string    `db:"type"`
	StartDate          time.Time `db:"start_date"`
	StartDateLocal     time.Time `db:"start_date_local"`
	Timezone           *string   `db:"timezone"`             // nullable
	Distance           float64   `db:"distance"`             // meters
	MovingTime         int       `db:"moving_time"`          // seconds
	ElapsedTime        int       `db:"elapsed_time"`         // seconds
	TotalElevationGain *float64  `db:"total_elevation_gain"` // nullable
	AverageSpeed       *float64  `db:"average_speed"`        // m/s
	MaxSpeed           *float64  `db:"max_speed"`            // m/s
	AverageHeartrate   *float64  `db:"average_heartrate"`    // nullable
	MaxHeartrate       *float64  `db:"max_heartrate"`        // nullable
	AverageCadence     *float64  `db:"average_cadence"`      // nullable
	HasHeartrate       bool      `db:"has_heartrate"`
	Manual             bool      `db:"manual"`
	StreamsSynced      bool      `db:"streams_synced"`
}

// StreamPoint represents a single data point from activity streams
type StreamPoint struct {
	ActivityID     int64    `db:"activity_id"`
	TimeOffset     int      `db:"time_offset"` // seconds
	Lat            *float64 `db:"latlng_lat"`
	Lng            *float64 `db:"latlng_lng"`
	Altitude       *float64 `db:"altitude"`        // meters
	VelocitySmooth *float64 `db:"velocity_smooth"` // m/s
	Heartrate      *int     `db:"heartrate"`       // bpm
	Cadence        *int     `db:"cadence"`         // single-leg rpm as recorded
	GradeSmooth    *float64 `db:"grade_smooth"`    // percent
	Distance       *float64 `db:"distance"`        // cumulative meters
}

// PlannedWorkout is the prescribed structure for an activity
type PlannedWorkout struct {
	ActivityID           int64    `db:"activity_id"`
	PlannedDurationMin   *float64 `db:"planned_duration_min"`
	PlannedDistanceKm    *float64 `db:"planned_distance_km"`
	PlannedPaceSKm       *float64 `db:"planned_pace_s_km"`
	PlannedIntervalCount *int     `db:"planned_interval_count"`
}

// AnalysisRecord is one cached analysis outcome. ResultJSON is set only for
// successful analyses.
type AnalysisRecord struct {
	ActivityID      int64     `db:"activity_id"`
	AnalysisVersion int       `db:"analysis_version"`
	Status          string    `db:"status"`
	Reason          string    `db:"reason"`
	RunID           string    `db:"run_id"`
	ResultJSON      []byte    `db:"result_json"`
	Error           string    `db:"error"`
	ComputedAt      time.Time `db:"computed_at"`
}

// ActivityStatus pairs an activity with its analysis status at one version
type ActivityStatus struct {
	Activity
	Status     string   // empty when no record exists yet
	Tier       *string  // set for successful analyses
	Confidence *float64 // set for successful analyses
}

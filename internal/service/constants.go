package service

const (
	// Unit conversions
	StravaCadenceMultiplier = 2.0 // Strava reports single-leg cadence

	// Minimum speed for pace calculation (m/s) - filters out stopped time
	MinSpeedForPace = 0.5

	// Streams fetched per sync run, to stay well inside the 15-minute budget
	StreamBatchSize = 50

	// Pagination limits
	ActivitiesPageSize    = 100
	RecentActivitiesLimit = 200

	// DefaultWorkers bounds parallel analyses when none is configured
	DefaultWorkers = 4
)

package store

import (
	"context"
	"database/sql"
	"errors"
)

// SavePlannedWorkout stores or replaces the prescribed workout for an activity
func (db *DB) SavePlannedWorkout(ctx context.Context, p *PlannedWorkout) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO planned_workouts (
			activity_id, planned_duration_min, planned_distance_km,
			planned_pace_s_km, planned_interval_count, updated_at
		) VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, p.ActivityID, p.PlannedDurationMin, p.PlannedDistanceKm, p.PlannedPaceSKm, p.PlannedIntervalCount)
	return err
}

// GetPlannedWorkout retrieves the prescribed workout for an activity
func (db *DB) GetPlannedWorkout(ctx context.Context, activityID int64) (*PlannedWorkout, error) {
	row := db.QueryRowContext(ctx, `
		SELECT activity_id, planned_duration_min, planned_distance_km,
			planned_pace_s_km, planned_interval_count
		FROM planned_workouts
		WHERE activity_id = ?
	`, activityID)

	var p PlannedWorkout
	err := row.Scan(&p.ActivityID, &p.PlannedDurationMin, &p.PlannedDistanceKm, &p.PlannedPaceSKm, &p.PlannedIntervalCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePlannedWorkout removes the prescribed workout for an activity
func (db *DB) DeletePlannedWorkout(ctx context.Context, activityID int64) error {
	result, err := db.ExecContext(ctx, "DELETE FROM planned_workouts WHERE activity_id = ?", activityID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPlanNotFound
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveStreams saves stream data for an activity
// It replaces any existing stream data for the activity
func (db *DB) SaveStreams(ctx context.Context, activityID int64, points []StreamPoint) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete existing streams for this activity
	if _, err := tx.ExecContext(ctx, "DELETE FROM streams WHERE activity_id = ?", activityID); err != nil {
		return fmt.Errorf("deleting existing streams: %w", err)
	}

	// Prepare insert statement
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO streams (
			activity_id, time_offset, latlng_lat, latlng_lng, altitude,
			velocity_smooth, heartrate, cadence, grade_smooth, distance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	// Insert all points
	for _, p := range points {
		_, err := stmt.ExecContext(ctx,
			activityID, p.TimeOffset, p.Lat, p.Lng, p.Altitude,
			p.VelocitySmooth, p.Heartrate, p.Cadence, p.GradeSmooth, p.Distance,
		)
		if err != nil {
			return fmt.Errorf("inserting stream point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// GetStreams retrieves all stream points for an activity
func (db *DB) GetStreams(ctx context.Context, activityID int64) ([]StreamPoint, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT activity_id, time_offset, latlng_lat, latlng_lng, altitude,
			velocity_smooth, heartrate, cadence, grade_smooth, distance
		FROM streams
		WHERE activity_id = ?
		ORDER BY time_offset
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []StreamPoint
	for rows.Next() {
		var p StreamPoint
		err := rows.Scan(
			&p.ActivityID, &p.TimeOffset, &p.Lat, &p.Lng, &p.Altitude,
			&p.VelocitySmooth, &p.Heartrate, &p.Cadence, &p.GradeSmooth, &p.Distance,
		)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// HasStreams checks if an activity has stream data
func (db *DB) HasStreams(ctx context.Context, activityID int64) (bool, error) {
	var exists int
	err := db.QueryRowContext(ctx, `
		SELECT 1 FROM streams WHERE activity_id = ? LIMIT 1
	`, activityID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetActivitiesNeedingAnalysis returns activities that are ready to analyze
// (streams stored, or manual) but have no final record at version
func (db *DB) GetActivitiesNeedingAnalysis(ctx context.Context, version int) ([]Activity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+activityColumns+`
		FROM activities a
		WHERE (a.streams_synced = 1 OR a.manual = 1)
		AND NOT EXISTS (
			SELECT 1 FROM analysis_results r
			WHERE r.activity_id = a.id
			AND r.analysis_version = ?
			AND r.status NOT IN ('pending', 'fetching')
		)
		ORDER BY start_date DESC
	`, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

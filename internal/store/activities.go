package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const activityColumns = `id, athlete_id, name, type, start_date, start_date_local, timezone,
	distance, moving_time, elapsed_time, total_elevation_gain,
	average_speed, max_speed, average_heartrate, max_heartrate,
	average_cadence, has_heartrate, manual, streams_synced`

// UpsertActivity inserts or updates an activity. The streams_synced flag is
// only ever set by MarkStreamsSynced.
func (db *DB) UpsertActivity(ctx context.Context, a *Activity) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO activities (`+activityColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			type = excluded.type,
			start_date = excluded.start_date,
			start_date_local = excluded.start_date_local,
			timezone = excluded.timezone,
			distance = excluded.distance,
			moving_time = excluded.moving_time,
			elapsed_time = excluded.elapsed_time,
			total_elevation_gain = excluded.total_elevation_gain,
			average_speed = excluded.average_speed,
			max_speed = excluded.max_speed,
			average_heartrate = excluded.average_heartrate,
			max_heartrate = excluded.max_heartrate,
			average_cadence = excluded.average_cadence,
			has_heartrate = excluded.has_heartrate,
			manual = excluded.manual,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.AthleteID, a.Name, a.Type,
		a.StartDate.Format(time.RFC3339), a.StartDateLocal.Format(time.RFC3339), a.Timezone,
		a.Distance, a.MovingTime, a.ElapsedTime, a.TotalElevationGain,
		a.AverageSpeed, a.MaxSpeed, a.AverageHeartrate, a.MaxHeartrate,
		a.AverageCadence, boolToInt(a.HasHeartrate), boolToInt(a.Manual), boolToInt(a.StreamsSynced),
	)
	return err
}

// GetActivity retrieves an activity by ID
func (db *DB) GetActivity(ctx context.Context, id int64) (*Activity, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		WHERE id = ?
	`, id)

	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	return a, err
}

// ListActivityStatuses returns activities with their analysis status at the
// given version, newest first. Tier and confidence come from the stored
// result of successful analyses.
func (db *DB) ListActivityStatuses(ctx context.Context, version, limit, offset int) ([]ActivityStatus, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+activityColumns+`, COALESCE(r.status, ''),
			json_extract(r.result_json, '$.tier_used'),
			json_extract(r.result_json, '$.confidence')
		FROM activities a
		LEFT JOIN analysis_results r
			ON r.activity_id = a.id AND r.analysis_version = ?
		ORDER BY start_date DESC
		LIMIT ? OFFSET ?
	`, version, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActivityStatus
	for rows.Next() {
		var as ActivityStatus
		if err := scanActivityInto(rows, &as.Activity, &as.Status, &as.Tier, &as.Confidence); err != nil {
			return nil, err
		}
		out = append(out, as)
	}
	return out, rows.Err()
}

// GetActivitiesNeedingStreams returns run activities whose streams haven't
// been synced yet. Manual activities have nothing to fetch.
func (db *DB) GetActivitiesNeedingStreams(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		WHERE streams_synced = 0 AND manual = 0
		ORDER BY start_date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// MarkStreamsSynced marks an activity's streams as synced
func (db *DB) MarkStreamsSynced(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `
		UPDATE activities
		SET streams_synced = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrActivityNotFound
	}
	return nil
}

// CountActivities returns the total number of activities
func (db *DB) CountActivities(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activities").Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

// scanActivity scans a single activity from a row
func scanActivity(row scanner) (*Activity, error) {
	var a Activity
	if err := scanActivityInto(row, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// scanActivityInto scans the activity columns followed by any extra columns
func scanActivityInto(row scanner, a *Activity, extra ...any) error {
	var startDate, startDateLocal string
	var hasHR, manual, streamsSynced int

	dest := []any{
		&a.ID, &a.AthleteID, &a.Name, &a.Type, &startDate, &startDateLocal, &a.Timezone,
		&a.Distance, &a.MovingTime, &a.ElapsedTime, &a.TotalElevationGain,
		&a.AverageSpeed, &a.MaxSpeed, &a.AverageHeartrate, &a.MaxHeartrate,
		&a.AverageCadence, &hasHR, &manual, &streamsSynced,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}

	var parseErr error
	a.StartDate, parseErr = time.Parse(time.RFC3339, startDate)
	if parseErr != nil {
		return fmt.Errorf("parsing start_date %q: %w", startDate, parseErr)
	}
	a.StartDateLocal, parseErr = time.Parse(time.RFC3339, startDateLocal)
	if parseErr != nil {
		return fmt.Errorf("parsing start_date_local %q: %w", startDateLocal, parseErr)
	}
	a.HasHeartrate = hasHR == 1
	a.Manual = manual == 1
	a.StreamsSynced = streamsSynced == 1
	return nil
}

// scanActivities scans multiple activities from rows
func scanActivities(rows *sql.Rows) ([]Activity, error) {
	var activities []Activity
	for rows.Next() {
		var a Activity
		if err := scanActivityInto(rows, &a); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

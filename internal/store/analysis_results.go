package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveAnalysis writes an analysis record. The row for (activity_id,
// analysis_version) is replaced as a whole, never patched.
func (db *DB) SaveAnalysis(ctx context.Context, rec *AnalysisRecord) error {
	computedAt := rec.ComputedAt
	if computedAt.IsZero() {
		computedAt = time.Now().UTC()
	}
	var result any
	if rec.ResultJSON != nil {
		result = string(rec.ResultJSON)
	}

	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_results (
			activity_id, analysis_version, status, reason, run_id,
			result_json, error, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ActivityID, rec.AnalysisVersion, rec.Status, nullString(rec.Reason), nullString(rec.RunID),
		result, nullString(rec.Error), computedAt.Format(time.RFC3339),
	)
	return err
}

// SetAnalysisStatus records a non-final lifecycle status (pending, fetching)
// for an activity, dropping any result stored at that version
func (db *DB) SetAnalysisStatus(ctx context.Context, activityID int64, version int, status string) error {
	return db.SaveAnalysis(ctx, &AnalysisRecord{
		ActivityID:      activityID,
		AnalysisVersion: version,
		Status:          status,
	})
}

// GetAnalysis retrieves the analysis record for an activity at version
func (db *DB) GetAnalysis(ctx context.Context, activityID int64, version int) (*AnalysisRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT activity_id, analysis_version, status, reason, run_id,
			result_json, error, computed_at
		FROM analysis_results
		WHERE activity_id = ? AND analysis_version = ?
	`, activityID, version)

	var rec AnalysisRecord
	var reason, runID, result, errText *string
	var computedAt string
	err := row.Scan(
		&rec.ActivityID, &rec.AnalysisVersion, &rec.Status, &reason, &runID,
		&result, &errText, &computedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, err
	}

	if reason != nil {
		rec.Reason = *reason
	}
	if runID != nil {
		rec.RunID = *runID
	}
	if result != nil {
		rec.ResultJSON = []byte(*result)
	}
	if errText != nil {
		rec.Error = *errText
	}
	rec.ComputedAt, err = time.Parse(time.RFC3339, computedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing computed_at %q: %w", computedAt, err)
	}
	return &rec, nil
}

// CountAnalysesByStatus returns the number of records per status at version
func (db *DB) CountAnalysesByStatus(ctx context.Context, version int) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM analysis_results
		WHERE analysis_version = ?
		GROUP BY status
	`, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DeleteStaleAnalyses removes records computed by older analysis versions
func (db *DB) DeleteStaleAnalyses(ctx context.Context, version int) (int64, error) {
	result, err := db.ExecContext(ctx, "DELETE FROM analysis_results WHERE analysis_version < ?", version)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

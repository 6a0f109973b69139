package store

import (
	"database/sql"
)

// JobRow is the persisted record of a background job. The
// Background Processor (internal/jobs) keeps its live ring buffer in memory;
// this table exists so completed ingest runs survive a process restart and
// incremental sync can compute "since" from the last successful run.
type JobRow struct {
	ID          string
	Name        string
	Priority    string
	Status      string
	RetryPolicy string
	Attempts    int
	SubmittedAt int64
	StartedAt   sql.NullInt64
	CompletedAt sql.NullInt64
	Error       sql.NullString
}

// InsertJob persists a newly submitted job.
func (s *Store) InsertJob(j JobRow) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO jobs (id, name, priority, status, retry_policy, attempts, submitted_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			j.ID, j.Name, j.Priority, j.Status, j.RetryPolicy, j.Attempts, j.SubmittedAt,
		)
		return err
	})
}

// UpdateJobStatus records a status transition and, when non-zero, the
// started_at/completed_at timestamps and attempt count.
func (s *Store) UpdateJobStatus(id, status string, attempts int, startedAt, completedAt int64, jobErr string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		var errVal interface{}
		if jobErr != "" {
			errVal = jobErr
		}
		var startedVal, completedVal interface{}
		if startedAt > 0 {
			startedVal = startedAt
		}
		if completedAt > 0 {
			completedVal = completedAt
		}
		_, err := tx.Exec(
			`UPDATE jobs SET status = ?, attempts = ?, started_at = COALESCE(?, started_at),
				completed_at = COALESCE(?, completed_at), error = ? WHERE id = ?`,
			status, attempts, startedVal, completedVal, errVal, id,
		)
		return err
	})
}

// LastCompletedIngest returns the completion time (epoch seconds) of the
// most recent successful ingest job for a source, used to compute the
// "since" instant for incremental ingest.
func (s *Store) LastCompletedIngest(jobName string) (int64, bool, error) {
	var completedAt sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(completed_at) FROM jobs WHERE name = ? AND status = 'completed'`, jobName,
	).Scan(&completedAt)
	if err != nil {
		return 0, false, err
	}
	if !completedAt.Valid {
		return 0, false, nil
	}
	return completedAt.Int64, true, nil
}

// JobHistory returns jobs submitted at or after since, most recent first,
// capped at limit. Supplements the in-memory ring buffer with a
// cursor-based query over the persisted rows.
func (s *Store) JobHistory(since int64, limit int) ([]JobRow, error) {
	rows, err := s.db.Query(
		`SELECT id, name, priority, status, retry_policy, attempts, submitted_at, started_at, completed_at, error
		 FROM jobs WHERE submitted_at >= ? ORDER BY submitted_at DESC LIMIT ?`, since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobRow
	for rows.Next() {
		var j JobRow
		if err := rows.Scan(&j.ID, &j.Name, &j.Priority, &j.Status, &j.RetryPolicy, &j.Attempts,
			&j.SubmittedAt, &j.StartedAt, &j.CompletedAt, &j.Error); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

package store

import (
	"database/sql"
)

// PlanRow is the persisted form of a Plan. Steps, risks and
// results are stored as JSON blobs; internal/plan owns their typed shape.
type PlanRow struct {
	ID                    string
	CorrelationID         string
	Query                 string
	StepsJSON             string
	RisksJSON             string
	Status                string
	OperationHash         string
	ContentOrigin         string
	CreatedAt             int64
	ExpiresAt             int64
	ConfirmedAt           sql.NullInt64
	ExecutionStartedAt    sql.NullInt64
	ExecutionCompletedAt  sql.NullInt64
	ResultsJSON           sql.NullString
	RollbackResultsJSON   sql.NullString
}

// InsertPlan persists a newly created plan.
func (s *Store) InsertPlan(p PlanRow) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO plans (id, correlation_id, query, steps_json, risks_json, status,
				operation_hash, content_origin, created_at, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.CorrelationID, p.Query, p.StepsJSON, p.RisksJSON, p.Status,
			p.OperationHash, p.ContentOrigin, p.CreatedAt, p.ExpiresAt,
		)
		return err
	})
}

// GetPlan loads a plan by id.
func (s *Store) GetPlan(id string) (PlanRow, error) {
	var p PlanRow
	err := s.db.QueryRow(
		`SELECT id, correlation_id, query, steps_json, risks_json, status, operation_hash,
			content_origin, created_at, expires_at, confirmed_at, execution_started_at,
			execution_completed_at, results_json, rollback_results_json
		 FROM plans WHERE id = ?`, id,
	).Scan(&p.ID, &p.CorrelationID, &p.Query, &p.StepsJSON, &p.RisksJSON, &p.Status,
		&p.OperationHash, &p.ContentOrigin, &p.CreatedAt, &p.ExpiresAt, &p.ConfirmedAt,
		&p.ExecutionStartedAt, &p.ExecutionCompletedAt, &p.ResultsJSON, &p.RollbackResultsJSON)
	if err == sql.ErrNoRows {
		return PlanRow{}, ErrNotFound
	}
	return p, err
}

// UpdatePlanStatus transitions a plan's status and stamps the matching
// timestamp column, if any. Callers (internal/plan) enforce the state
// machine; this is a plain write.
func (s *Store) UpdatePlanStatus(id, status string, timestampColumn string, at int64) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		if timestampColumn == "" {
			_, err := tx.Exec(`UPDATE plans SET status = ? WHERE id = ?`, status, id)
			return err
		}
		query := `UPDATE plans SET status = ?, ` + timestampColumn + ` = ? WHERE id = ?`
		_, err := tx.Exec(query, status, at, id)
		return err
	})
}

// SetPlanResults stores the step results and, on failure, rollback results.
func (s *Store) SetPlanResults(id string, resultsJSON, rollbackResultsJSON string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`UPDATE plans SET results_json = ?, rollback_results_json = ? WHERE id = ?`,
			resultsJSON, rollbackResultsJSON, id,
		)
		return err
	})
}

// ExpirePendingPlans transitions any plan still pending past its expires_at
// to expired. Returns the number of plans transitioned.
func (s *Store) ExpirePendingPlans(now int64) (int, error) {
	var n int64
	err := s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`UPDATE plans SET status = 'expired' WHERE status = 'pending' AND expires_at < ?`, now,
		)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/tracegate/internal/gate"
)

// GateEvaluation is one archived gate result. Readiness is nil when the
// evaluation was not recorded in a readiness history.
type GateEvaluation struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	CreatedAt time.Time       `json:"created_at"`
	Passed    bool            `json:"passed"`
	Result    gate.Result     `json:"result"`
	Readiness *gate.Readiness `json:"readiness,omitempty"`
}

// WriteGateEvaluation archives ev, assigning ID, Seq and CreatedAt when
// unset. Passed is taken from the result.
func (s *Store) WriteGateEvaluation(ctx context.Context, ev GateEvaluation) (GateEvaluation, error) {
	if ev.ID == "" {
		ev.ID = NewID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	ev.Passed = ev.Result.Passed

	resultJSON, err := marshalCanonical(ev.Result)
	if err != nil {
		return GateEvaluation{}, fmt.Errorf("write gate evaluation: result: %w", err)
	}
	var readiness sql.NullString
	if ev.Readiness != nil {
		data, err := marshalCanonical(ev.Readiness)
		if err != nil {
			return GateEvaluation{}, fmt.Errorf("write gate evaluation: readiness: %w", err)
		}
		readiness = sql.NullString{String: data, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return GateEvaluation{}, fmt.Errorf("write gate evaluation: begin tx: %w", err)
	}
	defer tx.Rollback()

	if ev.Seq, err = nextSeq(ctx, tx, "gate_evaluations"); err != nil {
		return GateEvaluation{}, fmt.Errorf("write gate evaluation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO gate_evaluations (id, seq, created_at, passed, result, readiness)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Seq, formatTime(ev.CreatedAt), boolToInt(ev.Passed), resultJSON, readiness)
	if err != nil {
		return GateEvaluation{}, fmt.Errorf("write gate evaluation: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return GateEvaluation{}, fmt.Errorf("write gate evaluation: commit: %w", err)
	}
	return ev, nil
}

// ListGateEvaluations returns evaluations newest first. A limit of 0 or less
// returns all of them.
func (s *Store) ListGateEvaluations(ctx context.Context, limit int) ([]GateEvaluation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, created_at, passed, result, readiness
		FROM gate_evaluations
		ORDER BY seq DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list gate evaluations: %w", err)
	}
	defer rows.Close()

	evals := []GateEvaluation{}
	for rows.Next() {
		var (
			ev         GateEvaluation
			created    string
			passed     int
			resultJSON string
			readiness  sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Seq, &created, &passed, &resultJSON, &readiness); err != nil {
			return nil, fmt.Errorf("scan gate evaluation: %w", err)
		}
		if ev.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		ev.Passed = passed != 0
		if err := unmarshalText(resultJSON, &ev.Result); err != nil {
			return nil, err
		}
		if readiness.Valid {
			ev.Readiness = &gate.Readiness{}
			if err := unmarshalText(readiness.String, ev.Readiness); err != nil {
				return nil, err
			}
		}
		evals = append(evals, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gate evaluations: %w", err)
	}
	return evals, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tracegate/internal/analysis"
	"github.com/roach88/tracegate/internal/canon"
)

// Batch is one archived analysis run over a trace batch.
type Batch struct {
	ID            string           `json:"id"`
	Seq           int64            `json:"seq"`
	Label         string           `json:"label"`
	CreatedAt     time.Time        `json:"created_at"`
	TracesSkipped int              `json:"traces_skipped"`
	Summary       analysis.Summary `json:"summary"`
	SummaryDigest string           `json:"summary_digest"`
	Reports       []Report         `json:"reports"`
}

// Report is an archived per-run report with its content digest.
type Report struct {
	analysis.ReportRecord
	Digest string `json:"digest"`
}

// BatchInfo is the listing view of a batch.
type BatchInfo struct {
	ID            string    `json:"id"`
	Seq           int64     `json:"seq"`
	Label         string    `json:"label"`
	CreatedAt     time.Time `json:"created_at"`
	RunsAnalyzed  int       `json:"runs_analyzed"`
	TracesSkipped int       `json:"traces_skipped"`
	Findings      int       `json:"findings"`
	SummaryDigest string    `json:"summary_digest"`
}

// BatchInput is what WriteBatch archives. An empty ID is assigned a new
// UUIDv7; a zero CreatedAt is set to the current time.
type BatchInput struct {
	ID            string
	Label         string
	CreatedAt     time.Time
	Summary       analysis.Summary
	Reports       []analysis.ReportRecord
	TracesSkipped int
}

// WriteBatch archives a batch with its reports and findings in one
// transaction and returns it as stored.
func (s *Store) WriteBatch(ctx context.Context, in BatchInput) (Batch, error) {
	if in.ID == "" {
		in.ID = NewID()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	in.CreatedAt = in.CreatedAt.UTC()

	summaryJSON, err := marshalCanonical(in.Summary)
	if err != nil {
		return Batch{}, fmt.Errorf("write batch: summary: %w", err)
	}
	summaryDigest, err := canon.Digest(canon.DomainBatch, in.Summary)
	if err != nil {
		return Batch{}, fmt.Errorf("write batch: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Batch{}, fmt.Errorf("write batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := nextSeq(ctx, tx, "batches")
	if err != nil {
		return Batch{}, fmt.Errorf("write batch: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches
		(id, seq, label, created_at, runs_analyzed, traces_skipped, summary, summary_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		in.ID,
		seq,
		in.Label,
		formatTime(in.CreatedAt),
		in.Summary.RunsAnalyzed,
		in.TracesSkipped,
		summaryJSON,
		summaryDigest,
	)
	if err != nil {
		return Batch{}, fmt.Errorf("write batch: insert: %w", err)
	}

	reports := make([]Report, 0, len(in.Reports))
	for pos, rec := range in.Reports {
		stored, err := writeReport(ctx, tx, in.ID, pos, rec)
		if err != nil {
			return Batch{}, fmt.Errorf("write batch: report %d: %w", pos, err)
		}
		reports = append(reports, stored)
	}

	if err := tx.Commit(); err != nil {
		return Batch{}, fmt.Errorf("write batch: commit: %w", err)
	}

	return Batch{
		ID:            in.ID,
		Seq:           seq,
		Label:         in.Label,
		CreatedAt:     in.CreatedAt,
		TracesSkipped: in.TracesSkipped,
		Summary:       in.Summary,
		SummaryDigest: summaryDigest,
		Reports:       reports,
	}, nil
}

func writeReport(ctx context.Context, tx *sql.Tx, batchID string, pos int, rec analysis.ReportRecord) (Report, error) {
	digest, err := canon.Digest(canon.DomainReport, rec)
	if err != nil {
		return Report{}, err
	}
	stats := rec.Stats
	if stats == nil {
		stats = map[string]any{}
	}
	statsJSON, err := marshalCanonical(stats)
	if err != nil {
		return Report{}, fmt.Errorf("stats: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO run_reports (batch_id, position, run_id, session_id, digest, stats)
		VALUES (?, ?, ?, ?, ?, ?)
	`, batchID, pos, rec.RunID, rec.SessionID, digest, statsJSON)
	if err != nil {
		return Report{}, fmt.Errorf("insert: %w", err)
	}

	for ord, f := range rec.Findings {
		refs := f.EventRefs
		if refs == nil {
			refs = []int64{}
		}
		refsJSON, err := marshalCanonical(refs)
		if err != nil {
			return Report{}, fmt.Errorf("finding %d: %w", ord, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO findings (batch_id, position, ordinal, category, severity, reason, event_refs)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, batchID, pos, ord, string(f.Category), string(f.Severity), f.Reason, refsJSON)
		if err != nil {
			return Report{}, fmt.Errorf("finding %d: insert: %w", ord, err)
		}
	}

	return Report{ReportRecord: rec, Digest: digest}, nil
}

// ListBatches returns batches newest first (ORDER BY seq DESC). A limit of 0
// or less returns every batch.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]BatchInfo, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.seq, b.label, b.created_at, b.runs_analyzed, b.traces_skipped, b.summary_digest,
		       (SELECT COUNT(*) FROM findings f WHERE f.batch_id = b.id)
		FROM batches b
		ORDER BY b.seq DESC, b.id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	batches := []BatchInfo{}
	for rows.Next() {
		var (
			info    BatchInfo
			created string
		)
		if err := rows.Scan(&info.ID, &info.Seq, &info.Label, &created, &info.RunsAnalyzed,
			&info.TracesSkipped, &info.SummaryDigest, &info.Findings); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if info.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		batches = append(batches, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// ReadBatch loads a batch with its reports and findings in original order.
// Returns ErrBatchNotFound if id does not exist.
func (s *Store) ReadBatch(ctx context.Context, id string) (Batch, error) {
	var (
		b           Batch
		created     string
		summaryJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, label, created_at, traces_skipped, summary, summary_digest
		FROM batches
		WHERE id = ?
	`, id).Scan(&b.ID, &b.Seq, &b.Label, &created, &b.TracesSkipped, &summaryJSON, &b.SummaryDigest)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, fmt.Errorf("read batch %q: %w", id, ErrBatchNotFound)
	}
	if err != nil {
		return Batch{}, fmt.Errorf("read batch %q: %w", id, err)
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return Batch{}, err
	}
	if err := unmarshalText(summaryJSON, &b.Summary); err != nil {
		return Batch{}, fmt.Errorf("read batch %q: %w", id, err)
	}

	reports, err := s.readReports(ctx, id)
	if err != nil {
		return Batch{}, fmt.Errorf("read batch %q: %w", id, err)
	}
	b.Reports = reports
	return b, nil
}

func (s *Store) readReports(ctx context.Context, batchID string) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, session_id, digest, stats
		FROM run_reports
		WHERE batch_id = ?
		ORDER BY position ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		var (
			r         Report
			statsJSON string
		)
		if err := rows.Scan(&r.RunID, &r.SessionID, &r.Digest, &statsJSON); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if err := unmarshalText(statsJSON, &r.Stats); err != nil {
			return nil, err
		}
		r.Findings = []analysis.Finding{}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}

	frows, err := s.db.QueryContext(ctx, `
		SELECT position, category, severity, reason, event_refs
		FROM findings
		WHERE batch_id = ?
		ORDER BY position ASC, ordinal ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer frows.Close()

	for frows.Next() {
		var (
			pos      int
			f        analysis.Finding
			refsJSON string
		)
		if err := frows.Scan(&pos, &f.Category, &f.Severity, &f.Reason, &refsJSON); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		if err := unmarshalText(refsJSON, &f.EventRefs); err != nil {
			return nil, err
		}
		if pos < 0 || pos >= len(reports) {
			return nil, fmt.Errorf("finding references missing report position %d", pos)
		}
		reports[pos].Findings = append(reports[pos].Findings, f)
	}
	if err := frows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return reports, nil
}

// CategoryCounts tallies findings per category for a batch in SQL. The
// result matches the archived summary's failure counts.
func (s *Store) CategoryCounts(ctx context.Context, batchID string) (map[analysis.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*)
		FROM findings
		WHERE batch_id = ?
		GROUP BY category
		ORDER BY category COLLATE BINARY ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()

	counts := map[analysis.Category]int{}
	for rows.Next() {
		var (
			c analysis.Category
			n int
		)
		if err := rows.Scan(&c, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[c] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return counts, nil
}

// Package store persists analysis reports to PostgreSQL and serves the
// operator directory.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"call-analysis-go/internal/types"
)

//go:embed schema.sql
var schema string

type Config struct {
	DSN      string
	MaxConns int32
}

// Store wraps a pgxpool.Pool.
type Store struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

func New(ctx context.Context, cfg Config, log *logrus.Entry) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 4
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool, log: log.WithField("component", "store")}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates missing tables. Existing tables are left alone.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Operators returns the canonical operator directory.
func (s *Store) Operators(ctx context.Context) ([]types.Operator, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, full_name FROM operators`)
	if err != nil {
		return nil, fmt.Errorf("querying operators: %w", err)
	}
	ops, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Operator, error) {
		var op types.Operator
		err := row.Scan(&op.ID, &op.FullName)
		return op, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading operators: %w", err)
	}
	return ops, nil
}

// SaveReports writes each report in its own transaction. A failing report is
// rolled back and reported in the joined error; the rest are still saved.
func (s *Store) SaveReports(ctx context.Context, reports []types.AnalysisReport, departmentID int) (int, error) {
	var (
		saved int
		errs  []error
	)
	for _, r := range reports {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.saveReport(ctx, r, departmentID); err != nil {
			s.log.WithField("call_id", r.Call.SegmentID).WithError(err).Error("saving report failed")
			errs = append(errs, fmt.Errorf("call %s: %w", r.Call.SegmentID, err))
			continue
		}
		saved++
	}
	s.log.WithFields(logrus.Fields{"saved": saved, "total": len(reports)}).Info("reports saved")
	return saved, errors.Join(errs...)
}

func (s *Store) saveReport(ctx context.Context, r types.AnalysisReport, departmentID int) error {
	rows, err := buildRows(r, departmentID)
	if err != nil {
		return err
	}
	for _, e := range rows.Skipped {
		s.log.WithFields(logrus.Fields{
			"call_id":   r.Call.SegmentID,
			"category":  e.Category,
			"criterion": e.Criterion,
		}).Warn("evaluation without score or max score not persisted")
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, rows.batch())
		if err := br.Close(); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const (
	insertCall = `INSERT INTO calls (
		id, start_time, finish_time, operator_id, department_id, phone_number,
		total_score, max_score, performance_percentage
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	upsertTranscript = `INSERT INTO call_transcripts (call_id, transcript) VALUES ($1, $2)
		ON CONFLICT (call_id) DO UPDATE SET transcript = EXCLUDED.transcript`
	insertEvaluation = `INSERT INTO call_evaluations (call_id, category, criterion, score, max_score, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`
	insertRecommendation = `INSERT INTO call_recommendations (call_id, category, issue, recommendation, priority)
		VALUES ($1, $2, $3, $4, $5)`
	insertAgreement     = `INSERT INTO agreements (call_id, amount, agreement) VALUES ($1, $2, $3)`
	insertDeclineReason = `INSERT INTO call_decline_reasons (call_id, reason_type, reason_description, product_category)
		VALUES ($1, $2, $3, $4)`
)

func (rows reportRows) batch() *pgx.Batch {
	b := &pgx.Batch{}
	c := rows.Call
	b.Queue(insertCall, c.ID, c.StartTime, c.FinishTime, c.OperatorID, c.DepartmentID, c.Phone,
		c.TotalScore, c.MaxScore, c.Performance)
	if rows.Transcript != nil {
		b.Queue(upsertTranscript, c.ID, *rows.Transcript)
	}
	for _, e := range rows.Evaluations {
		b.Queue(insertEvaluation, c.ID, e.Category, e.Criterion, e.Score, e.MaxScore, e.Reason)
	}
	for _, r := range rows.Recommendations {
		b.Queue(insertRecommendation, c.ID, r.Category, r.Issue, r.Recommendation, string(r.Priority))
	}
	for _, a := range rows.Agreements {
		b.Queue(insertAgreement, c.ID, a.Amount, a.Agreement)
	}
	for _, d := range rows.DeclineReasons {
		b.Queue(insertDeclineReason, c.ID, strPtr(d.ReasonType), d.ReasonDescription, d.ProductCategory)
	}
	return b
}

// Package storage persists jobs, applications and payments in
// Postgres. Every job and payment row carries a version column; writes
// are compare-and-swap so a lost race surfaces as
// ConcurrentModification instead of silently applying a stale
// transition.
package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/belimuno/marketplace/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// store code runs inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	q    querier
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store { return &Store{q: pool, pool: pool} }

// Transact runs fn against a store bound to one transaction. Nested
// calls join the ambient transaction.
func (s *Store) Transact(ctx context.Context, fn func(domain.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(&Store{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

const jobColumns = `id, client_id, worker_id, title, description,
budget_amount, budget_currency, deadline, status, progress,
progress_log, rating, review, version, created_at, updated_at`

func (s *Store) CreateJob(ctx context.Context, j *domain.Job) error {
	log, err := json.Marshal(j.ProgressLog)
	if err != nil {
		return errors.Wrap(err, "marshal progress log")
	}
	_, err = s.q.Exec(ctx, `insert into jobs(`+jobColumns+`)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1,$14,$15)`,
		j.ID, j.ClientID, j.WorkerID, j.Title, j.Description,
		j.Budget.Amount, j.Budget.Currency, j.Deadline, j.Status, j.Progress,
		log, j.Rating, j.Review, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert job")
	}
	j.Version = 1
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return scanJob(s.q.QueryRow(ctx, `select `+jobColumns+` from jobs where id = $1`, id))
}

func (s *Store) ListJobs(ctx context.Context, f domain.JobFilter) ([]*domain.Job, error) {
	sql := `select ` + jobColumns + ` from jobs where 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		sql += ` and status = $` + itoa(len(args))
	}
	if f.ClientID != nil {
		args = append(args, *f.ClientID)
		sql += ` and client_id = $` + itoa(len(args))
	}
	if f.WorkerID != nil {
		args = append(args, *f.WorkerID)
		sql += ` and worker_id = $` + itoa(len(args))
	}
	sql += ` order by created_at desc`
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	defer rows.Close()
	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpdateJob writes the job back, guarded by its version. Zero rows
// affected means either the row is gone or someone else won the race.
func (s *Store) UpdateJob(ctx context.Context, j *domain.Job) error {
	log, err := json.Marshal(j.ProgressLog)
	if err != nil {
		return errors.Wrap(err, "marshal progress log")
	}
	now := time.Now().UTC()
	tag, err := s.q.Exec(ctx, `update jobs
set worker_id = $3, title = $4, description = $5, deadline = $6,
    status = $7, progress = $8, progress_log = $9, rating = $10,
    review = $11, version = version + 1, updated_at = $12
where id = $1 and version = $2`,
		j.ID, j.Version, j.WorkerID, j.Title, j.Description, j.Deadline,
		j.Status, j.Progress, log, j.Rating, j.Review, now,
	)
	if err != nil {
		return errors.Wrap(err, "update job")
	}
	if tag.RowsAffected() == 0 {
		return s.staleWrite(ctx, "jobs", "job", j.ID)
	}
	j.Version++
	j.UpdatedAt = now
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	var log []byte
	err := row.Scan(&j.ID, &j.ClientID, &j.WorkerID, &j.Title, &j.Description,
		&j.Budget.Amount, &j.Budget.Currency, &j.Deadline, &j.Status, &j.Progress,
		&log, &j.Rating, &j.Review, &j.Version, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan job")
	}
	if len(log) > 0 {
		if err := json.Unmarshal(log, &j.ProgressLog); err != nil {
			return nil, errors.Wrap(err, "unmarshal progress log")
		}
	}
	return &j, nil
}

const applicationColumns = `id, job_id, worker_id, cover_letter,
proposed_amount, proposed_currency, status, created_at, updated_at`

func (s *Store) CreateApplication(ctx context.Context, a *domain.Application) error {
	var amount *int64
	var currency *string
	if a.ProposedBudget != nil {
		amount = &a.ProposedBudget.Amount
		currency = &a.ProposedBudget.Currency
	}
	_, err := s.q.Exec(ctx, `insert into applications(`+applicationColumns+`)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.JobID, a.WorkerID, a.CoverLetter, amount, currency,
		a.Status, a.CreatedAt, a.UpdatedAt,
	)
	return errors.Wrap(err, "insert application")
}

func (s *Store) GetApplication(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	return scanApplication(s.q.QueryRow(ctx,
		`select `+applicationColumns+` from applications where id = $1`, id))
}

func (s *Store) ListApplications(ctx context.Context, jobID uuid.UUID) ([]*domain.Application, error) {
	rows, err := s.q.Query(ctx,
		`select `+applicationColumns+` from applications where job_id = $1 order by created_at asc`, jobID)
	if err != nil {
		return nil, errors.Wrap(err, "list applications")
	}
	defer rows.Close()
	var out []*domain.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateApplication(ctx context.Context, a *domain.Application) error {
	now := time.Now().UTC()
	tag, err := s.q.Exec(ctx,
		`update applications set status = $2, updated_at = $3 where id = $1`,
		a.ID, a.Status, now,
	)
	if err != nil {
		return errors.Wrap(err, "update application")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	a.UpdatedAt = now
	return nil
}

func scanApplication(row pgx.Row) (*domain.Application, error) {
	var a domain.Application
	var amount *int64
	var currency *string
	err := row.Scan(&a.ID, &a.JobID, &a.WorkerID, &a.CoverLetter,
		&amount, &currency, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan application")
	}
	if amount != nil {
		m := domain.Money{Amount: *amount, Currency: deref(currency, domain.DefaultCurrency)}
		a.ProposedBudget = &m
	}
	return &a, nil
}

const paymentColumns = `id, transaction_id, job_id, payer_id, recipient_id,
amount, currency, method, type, status, breakdown, refunded_amount,
error_code, error_message, note, resolution_note,
initiated_at, processed_at, completed_at, version, created_at, updated_at`

func (s *Store) CreatePayment(ctx context.Context, p *domain.Payment) error {
	breakdown, err := marshalBreakdown(p.Breakdown)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `insert into payments(`+paymentColumns+`)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,1,$20,$21)`,
		p.ID, p.TransactionID, p.JobID, p.PayerID, p.RecipientID,
		p.Amount.Amount, p.Amount.Currency, p.Method, p.Type, p.Status,
		breakdown, refundedMinor(p), p.ErrorCode, p.ErrorMessage, p.Note, p.ResolutionNote,
		p.InitiatedAt, p.ProcessedAt, p.CompletedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert payment")
	}
	p.Version = 1
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return scanPayment(s.q.QueryRow(ctx, `select `+paymentColumns+` from payments where id = $1`, id))
}

func (s *Store) ListPayments(ctx context.Context, f domain.PaymentFilter) ([]*domain.Payment, error) {
	sql := `select ` + paymentColumns + ` from payments where 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		sql += ` and status = $` + itoa(len(args))
	}
	if f.JobID != nil {
		args = append(args, *f.JobID)
		sql += ` and job_id = $` + itoa(len(args))
	}
	sql += ` order by initiated_at desc`
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list payments")
	}
	defer rows.Close()
	var out []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	breakdown, err := marshalBreakdown(p.Breakdown)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	tag, err := s.q.Exec(ctx, `update payments
set status = $3, breakdown = $4, refunded_amount = $5, error_code = $6,
    error_message = $7, note = $8, resolution_note = $9,
    processed_at = $10, completed_at = $11, version = version + 1,
    updated_at = $12
where id = $1 and version = $2`,
		p.ID, p.Version, p.Status, breakdown, refundedMinor(p), p.ErrorCode,
		p.ErrorMessage, p.Note, p.ResolutionNote, p.ProcessedAt, p.CompletedAt, now,
	)
	if err != nil {
		return errors.Wrap(err, "update payment")
	}
	if tag.RowsAffected() == 0 {
		return s.staleWrite(ctx, "payments", "payment", p.ID)
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var breakdown []byte
	var refunded *int64
	err := row.Scan(&p.ID, &p.TransactionID, &p.JobID, &p.PayerID, &p.RecipientID,
		&p.Amount.Amount, &p.Amount.Currency, &p.Method, &p.Type, &p.Status,
		&breakdown, &refunded, &p.ErrorCode, &p.ErrorMessage, &p.Note, &p.ResolutionNote,
		&p.InitiatedAt, &p.ProcessedAt, &p.CompletedAt, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan payment")
	}
	if len(breakdown) > 0 {
		var b domain.Breakdown
		if err := json.Unmarshal(breakdown, &b); err != nil {
			return nil, errors.Wrap(err, "unmarshal breakdown")
		}
		p.Breakdown = &b
	}
	if refunded != nil {
		m := domain.NewMoney(*refunded, p.Amount.Currency)
		p.RefundedAmount = &m
	}
	return &p, nil
}

// staleWrite distinguishes a vanished row from a lost version race.
func (s *Store) staleWrite(ctx context.Context, table, entity string, id uuid.UUID) error {
	var exists bool
	err := s.q.QueryRow(ctx, `select exists(select 1 from `+table+` where id = $1)`, id).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "check "+entity)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return &domain.ConcurrentModificationError{Entity: entity, ID: id}
}

func marshalBreakdown(b *domain.Breakdown) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	out, err := json.Marshal(b)
	return out, errors.Wrap(err, "marshal breakdown")
}

func refundedMinor(p *domain.Payment) *int64 {
	if p.RefundedAmount == nil {
		return nil
	}
	return &p.RefundedAmount.Amount
}

func deref(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func itoa(n int) string { return strconv.Itoa(n) }

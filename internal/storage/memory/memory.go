// Package memory is an in-process Store with the same optimistic
// locking semantics as the Postgres store. It backs the test suites
// and the local dev mode, where spinning up Postgres is not worth it.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/belimuno/marketplace/internal/domain"
)

type Store struct {
	mu           sync.Mutex
	jobs         map[uuid.UUID]*domain.Job
	applications map[uuid.UUID]*domain.Application
	payments     map[uuid.UUID]*domain.Payment
}

func New() *Store {
	return &Store{
		jobs:         make(map[uuid.UUID]*domain.Job),
		applications: make(map[uuid.UUID]*domain.Application),
		payments:     make(map[uuid.UUID]*domain.Payment),
	}
}

// Transact serializes the callback under the store lock, which gives
// the same single-writer-per-record guarantee the Postgres store gets
// from row versions. The maps are snapshotted first and restored when
// the callback fails, so a half-applied transition never leaks out.
// The callback receives an unlocked view so its reads and writes do
// not deadlock.
func (s *Store) Transact(ctx context.Context, fn func(domain.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := maps.Clone(s.jobs)
	applications := maps.Clone(s.applications)
	payments := maps.Clone(s.payments)
	if err := fn(&unlocked{s}); err != nil {
		s.jobs = jobs
		s.applications = applications
		s.payments = payments
		return err
	}
	return nil
}

// unlocked is the store view used inside Transact, where the outer
// call already holds the lock.
type unlocked struct{ s *Store }

func (u *unlocked) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return u.s.getJob(id)
}
func (u *unlocked) ListJobs(ctx context.Context, f domain.JobFilter) ([]*domain.Job, error) {
	return u.s.listJobs(f)
}
func (u *unlocked) CreateJob(ctx context.Context, j *domain.Job) error { return u.s.createJob(j) }
func (u *unlocked) UpdateJob(ctx context.Context, j *domain.Job) error { return u.s.updateJob(j) }
func (u *unlocked) GetApplication(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	return u.s.getApplication(id)
}
func (u *unlocked) ListApplications(ctx context.Context, jobID uuid.UUID) ([]*domain.Application, error) {
	return u.s.listApplications(jobID)
}
func (u *unlocked) CreateApplication(ctx context.Context, a *domain.Application) error {
	return u.s.createApplication(a)
}
func (u *unlocked) UpdateApplication(ctx context.Context, a *domain.Application) error {
	return u.s.updateApplication(a)
}
func (u *unlocked) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return u.s.getPayment(id)
}
func (u *unlocked) ListPayments(ctx context.Context, f domain.PaymentFilter) ([]*domain.Payment, error) {
	return u.s.listPayments(f)
}
func (u *unlocked) CreatePayment(ctx context.Context, p *domain.Payment) error {
	return u.s.createPayment(p)
}
func (u *unlocked) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	return u.s.updatePayment(p)
}
func (u *unlocked) Transact(ctx context.Context, fn func(domain.Store) error) error {
	return fn(u)
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getJob(id)
}

func (s *Store) ListJobs(ctx context.Context, f domain.JobFilter) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listJobs(f)
}

func (s *Store) CreateJob(ctx context.Context, j *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createJob(j)
}

func (s *Store) UpdateJob(ctx context.Context, j *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateJob(j)
}

func (s *Store) GetApplication(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getApplication(id)
}

func (s *Store) ListApplications(ctx context.Context, jobID uuid.UUID) ([]*domain.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listApplications(jobID)
}

func (s *Store) CreateApplication(ctx context.Context, a *domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createApplication(a)
}

func (s *Store) UpdateApplication(ctx context.Context, a *domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateApplication(a)
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPayment(id)
}

func (s *Store) ListPayments(ctx context.Context, f domain.PaymentFilter) ([]*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listPayments(f)
}

func (s *Store) CreatePayment(ctx context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createPayment(p)
}

func (s *Store) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePayment(p)
}

func (s *Store) getJob(id uuid.UUID) (*domain.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *Store) listJobs(f domain.JobFilter) ([]*domain.Job, error) {
	var out []*domain.Job
	for _, j := range s.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.ClientID != nil && j.ClientID != *f.ClientID {
			continue
		}
		if f.WorkerID != nil && (j.WorkerID == nil || *j.WorkerID != *f.WorkerID) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

func (s *Store) createJob(j *domain.Job) error {
	j.Version = 1
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *Store) updateJob(j *domain.Job) error {
	cur, ok := s.jobs[j.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != j.Version {
		return &domain.ConcurrentModificationError{Entity: "job", ID: j.ID}
	}
	j.Version++
	j.UpdatedAt = time.Now().UTC()
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *Store) getApplication(id uuid.UUID) (*domain.Application, error) {
	a, ok := s.applications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) listApplications(jobID uuid.UUID) ([]*domain.Application, error) {
	var out []*domain.Application
	for _, a := range s.applications {
		if a.JobID != jobID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (s *Store) createApplication(a *domain.Application) error {
	cp := *a
	s.applications[a.ID] = &cp
	return nil
}

func (s *Store) updateApplication(a *domain.Application) error {
	if _, ok := s.applications[a.ID]; !ok {
		return domain.ErrNotFound
	}
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	s.applications[a.ID] = &cp
	return nil
}

func (s *Store) getPayment(id uuid.UUID) (*domain.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) listPayments(f domain.PaymentFilter) ([]*domain.Payment, error) {
	var out []*domain.Payment
	for _, p := range s.payments {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.JobID != nil && (p.JobID == nil || *p.JobID != *f.JobID) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].InitiatedAt.After(out[k].InitiatedAt) })
	return out, nil
}

func (s *Store) createPayment(p *domain.Payment) error {
	p.Version = 1
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *Store) updatePayment(p *domain.Payment) error {
	cur, ok := s.payments[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != p.Version {
		return &domain.ConcurrentModificationError{Entity: "payment", ID: p.ID}
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

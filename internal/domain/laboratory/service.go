package laboratory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/visit"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

type VisitGetter interface {
	GetVisit(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
}

type Service struct {
	repo   Repository
	visits VisitGetter
}

func NewService(repo Repository, visits VisitGetter) *Service {
	return &Service{repo: repo, visits: visits}
}

// Order adds a test to an in-progress visit.
func (s *Service) Order(ctx context.Context, actor auth.Actor, visitID uuid.UUID, req OrderRequest) (*LabTest, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("test name is required")
	}
	v, err := s.visits.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !v.InProgress() {
		return nil, apperr.Conflict("cannot order tests on a %s visit", v.Status)
	}
	t := &LabTest{
		VisitID:         v.ID,
		PatientID:       v.PatientID,
		BranchID:        v.BranchID,
		Name:            name,
		Category:        strings.TrimSpace(req.Category),
		ServiceChargeID: req.ServiceChargeID,
		Status:          StatusOrdered,
		OrderedBy:       actor.StaffID,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, apperr.Wrap(err, "order lab test")
	}
	return t, nil
}

// ListByVisit returns every test ordered for the visit, oldest first.
func (s *Service) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*LabTest, error) {
	items, err := s.repo.ListByVisit(ctx, visitID)
	if err != nil {
		return nil, apperr.Wrap(err, "list lab tests")
	}
	return items, nil
}

func (s *Service) Start(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	t, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusOrdered {
		return nil, apperr.Conflict("lab test is %s", t.Status)
	}
	t.Status = StatusInProgress
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, apperr.Wrap(err, "update lab test")
	}
	return t, nil
}

func (s *Service) RecordResult(ctx context.Context, actor auth.Actor, id uuid.UUID, result string) (*LabTest, error) {
	result = strings.TrimSpace(result)
	if result == "" {
		return nil, apperr.Validation("result is required")
	}
	t, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == StatusCompleted {
		return nil, apperr.Conflict("lab test already has a result")
	}
	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.Result = &result
	t.CompletedBy = &actor.StaffID
	t.CompletedAt = &now
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, apperr.Wrap(err, "update lab test")
	}
	return t, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Lookup(err, "lab test not found")
	}
	return t, nil
}

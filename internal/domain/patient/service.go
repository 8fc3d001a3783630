package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/pkg/refnum"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return apperr.Validation("firstName and lastName are required")
	}
	if p.BranchID == uuid.Nil {
		return apperr.Validation("branchId is required")
	}
	if p.Insurance != nil && (p.Insurance.Provider == "" || p.Insurance.PolicyNumber == "") {
		return apperr.Validation("insurance requires provider and policyNumber")
	}
	if p.PatientNumber == "" {
		p.PatientNumber = refnum.Daily("PAT", time.Now())
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return apperr.Wrap(err, "create patient")
	}
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Lookup(err, "patient not found")
	}
	return p, nil
}

func (s *Service) ListPatients(ctx context.Context, branchID *uuid.UUID, query string, limit, offset int) ([]*Patient, int, error) {
	items, total, err := s.repo.ListByBranch(ctx, branchID, query, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "list patients")
	}
	return items, total, nil
}

package staff

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validRoles = map[string]bool{
	auth.RoleAdmin:        true,
	auth.RoleFrontDesk:    true,
	auth.RoleNurse:        true,
	auth.RoleDoctor:       true,
	auth.RoleLabScientist: true,
	auth.RolePharmacist:   true,
	auth.RoleBilling:      true,
}

func (s *Service) CreateStaff(ctx context.Context, st *Staff) error {
	st.Name = strings.TrimSpace(st.Name)
	st.Email = strings.ToLower(strings.TrimSpace(st.Email))
	if st.Name == "" {
		return apperr.Validation("name is required")
	}
	if _, err := mail.ParseAddress(st.Email); err != nil {
		return apperr.Validation("a valid email is required")
	}
	if !validRoles[st.Role] {
		return apperr.Validation("invalid role: %s", st.Role)
	}
	st.Active = true
	if err := s.repo.Create(ctx, st); err != nil {
		return apperr.Wrap(err, "create staff")
	}
	return nil
}

func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Lookup(err, "staff member not found")
	}
	return st, nil
}

func (s *Service) ListStaff(ctx context.Context, f Filter, limit, offset int) ([]*Staff, int, error) {
	if f.Role != "" && !validRoles[f.Role] {
		return nil, 0, apperr.Validation("invalid role: %s", f.Role)
	}
	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "list staff")
	}
	return items, total, nil
}

// ActiveForRole lists the staff who should hear about work arriving at a
// stage owned by role.
func (s *Service) ActiveForRole(ctx context.Context, role string, branchID *uuid.UUID) ([]*Staff, error) {
	return s.repo.ListActiveByRoleAndBranch(ctx, role, branchID)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return apperr.Lookup(err, "staff member not found")
	}
	return nil
}
